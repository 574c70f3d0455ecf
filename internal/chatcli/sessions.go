package chatcli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage chat sessions",
}

var (
	sessionsUserID string
	sessionsLimit  int
)

var sessionsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List chat sessions",
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		query := url.Values{}
		if sessionsUserID != "" {
			query.Set("user_id", sessionsUserID)
		}
		if sessionsLimit > 0 {
			query.Set("limit", strconv.Itoa(sessionsLimit))
		}
		path := "/api/sessions"
		if len(query) > 0 {
			path += "?" + query.Encode()
		}
		var resp SessionList
		if err := client.GetJSON(path, &resp); err != nil {
			exitWithError(cmd, err)
			return
		}
		if done, err := renderJSON(resp.Sessions); err != nil {
			exitWithError(cmd, err)
			return
		} else if done {
			return
		}
		tw := newTable()
		fmt.Fprintf(tw, "SESSION ID\tTITLE\tUSER\tLAST ACTIVITY\tBUSY\n")
		for _, s := range resp.Sessions {
			busy := ""
			if s.IsProcessing {
				busy = "yes"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				s.SessionID,
				truncate(s.Title, 40),
				s.UserID,
				relativeTime(s.LastActivity),
				busy)
		}
		flushTable(tw)
	},
}

var sessionsGetCmd = &cobra.Command{
	Use:   "get <session-id>",
	Short: "Describe a session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		var sess SessionInfo
		if err := client.GetJSON("/api/sessions/"+args[0], &sess); err != nil {
			exitWithError(cmd, err)
			return
		}
		if done, err := renderJSON(sess); err != nil {
			exitWithError(cmd, err)
			return
		} else if done {
			return
		}
		tw := newTable()
		fmt.Fprintf(tw, "Field\tValue\n")
		fmt.Fprintf(tw, "Session ID\t%s\n", sess.SessionID)
		fmt.Fprintf(tw, "Title\t%s\n", sess.Title)
		fmt.Fprintf(tw, "User\t%s\n", sess.UserID)
		fmt.Fprintf(tw, "Created\t%s\n", sess.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(tw, "Last Activity\t%s\n", sess.LastActivity.Format(time.RFC3339))
		fmt.Fprintf(tw, "Processing\t%t\n", sess.IsProcessing)
		flushTable(tw)
	},
}

var sessionsRenameCmd = &cobra.Command{
	Use:   "rename <session-id> <title>",
	Short: "Rename a session",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		payload := map[string]string{"title": args[1]}
		var sess SessionInfo
		if err := client.PutJSON("/api/sessions/"+args[0], payload, &sess); err != nil {
			exitWithError(cmd, err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Session renamed to %q.\n", sess.Title)
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its messages",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		if err := client.DeleteJSON("/api/sessions/"+args[0], nil); err != nil {
			exitWithError(cmd, err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Session %s deleted.\n", args[0])
	},
}

var sessionsMessagesCmd = &cobra.Command{
	Use:   "messages <session-id>",
	Short: "Print the message transcript of a session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		var resp MessageList
		if err := client.GetJSON("/api/sessions/"+args[0]+"/messages", &resp); err != nil {
			exitWithError(cmd, err)
			return
		}
		if done, err := renderJSON(resp.Messages); err != nil {
			exitWithError(cmd, err)
			return
		} else if done {
			return
		}
		for _, msg := range resp.Messages {
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s:\n%s\n\n",
				msg.CreatedAt.Format("15:04:05"), msg.Role, msg.Content)
		}
	},
}

var (
	chatSessionID string
	chatUserID    string
	chatWait      bool
	chatTimeout   time.Duration
)

var chatCmd = &cobra.Command{
	Use:   "chat <question>",
	Short: "Ask the configured LLM a question",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		sessionID := chatSessionID
		if sessionID == "" {
			payload := map[string]string{"userId": chatUserID, "title": "chatctl"}
			var sess SessionInfo
			if err := client.PostJSON("/api/sessions", payload, &sess); err != nil {
				exitWithError(cmd, err)
				return
			}
			sessionID = sess.SessionID
			fmt.Fprintf(cmd.OutOrStdout(), "Session: %s\n", sessionID)
		}
		question := args[0]
		for _, extra := range args[1:] {
			question += " " + extra
		}
		payload := map[string]string{"question": question}
		var request ChatRequestInfo
		if err := client.PostJSON("/api/sessions/"+sessionID+"/chat", payload, &request); err != nil {
			exitWithError(cmd, err)
			return
		}
		if !chatWait {
			fmt.Fprintf(cmd.OutOrStdout(), "Request %s accepted (%s).\n", request.RequestID, request.Status)
			return
		}
		final, err := waitForAnswer(client, request.RequestID, chatTimeout)
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		if final.Status == "error" {
			exitWithError(cmd, fmt.Errorf("chat failed: %s", final.ErrorMessage))
			return
		}
		var result ChatResultBody
		if final.Result != "" {
			_ = json.Unmarshal([]byte(final.Result), &result)
		}
		if result.Content == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Request %s finished with status %s.\n", final.RequestID, final.Status)
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Content)
	},
}

func waitForAnswer(client *Client, requestID string, timeout time.Duration) (*ChatRequestInfo, error) {
	deadline := time.Now().Add(timeout)
	for {
		var request ChatRequestInfo
		if err := client.GetJSON("/api/chat/requests/"+requestID, &request); err != nil {
			return nil, err
		}
		if request.Status == "completed" || request.Status == "error" {
			return &request, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out waiting for request %s (last status %s)", requestID, request.Status)
		}
		time.Sleep(time.Second)
	}
}

func init() {
	sessionsListCmd.Flags().StringVar(&sessionsUserID, "user", "", "Filter by user ID")
	sessionsListCmd.Flags().IntVar(&sessionsLimit, "limit", 0, "Maximum number of sessions")
	chatCmd.Flags().StringVar(&chatSessionID, "session", "", "Existing session ID (a new session is created when empty)")
	chatCmd.Flags().StringVar(&chatUserID, "user", "", "User ID for a newly created session")
	chatCmd.Flags().BoolVar(&chatWait, "wait", true, "Poll until the answer is ready")
	chatCmd.Flags().DurationVar(&chatTimeout, "timeout", 5*time.Minute, "How long to wait for the answer")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsGetCmd)
	sessionsCmd.AddCommand(sessionsRenameCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsMessagesCmd)
}

type SessionInfo struct {
	SessionID    string    `json:"sessionId"`
	UserID       string    `json:"userId"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	IsProcessing bool      `json:"isProcessing"`
}

type SessionList struct {
	Sessions []SessionInfo `json:"sessions"`
	Count    int           `json:"count"`
}

type MessageInfo struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	RequestID string    `json:"requestId"`
	CreatedAt time.Time `json:"createdAt"`
}

type MessageList struct {
	Messages []MessageInfo `json:"messages"`
	Count    int           `json:"count"`
}

type ChatRequestInfo struct {
	RequestID    string `json:"requestId"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage"`
	Result       string `json:"result"`
}

type ChatResultBody struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}
