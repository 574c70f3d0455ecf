package chatcli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var (
	historyProfileID int64
	historyDomain    string
	historyLimit     int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show configuration change history",
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		query := url.Values{}
		if historyProfileID > 0 {
			query.Set("profile_id", strconv.FormatInt(historyProfileID, 10))
		}
		if historyDomain != "" {
			query.Set("domain", historyDomain)
		}
		if historyLimit > 0 {
			query.Set("limit", strconv.Itoa(historyLimit))
		}
		path := "/api/settings/history"
		if len(query) > 0 {
			path += "?" + query.Encode()
		}
		var resp HistoryList
		if err := client.GetJSON(path, &resp); err != nil {
			exitWithError(cmd, err)
			return
		}
		if done, err := renderJSON(resp.History); err != nil {
			exitWithError(cmd, err)
			return
		} else if done {
			return
		}
		tw := newTable()
		fmt.Fprintf(tw, "TIME\tPROFILE\tDOMAIN\tACTION\tBY\tCHANGES\n")
		for _, entry := range resp.History {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n",
				entry.Timestamp.Format(time.RFC3339),
				entry.ProfileID,
				entry.Domain,
				entry.Action,
				entry.ChangedBy,
				summarizeChanges(entry.Changes))
		}
		flushTable(tw)
	},
}

func init() {
	historyCmd.Flags().Int64Var(&historyProfileID, "profile", 0, "Filter by profile ID")
	historyCmd.Flags().StringVar(&historyDomain, "domain", "", "Filter by domain (profile, ai_infra, mlflow, prompts)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "Maximum number of entries")
}

type HistoryList struct {
	History []HistoryEntry `json:"history"`
	Count   int            `json:"count"`
}

func summarizeChanges(changes map[string]FieldChange) string {
	if len(changes) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(changes))
	for field, change := range changes {
		parts = append(parts, fmt.Sprintf("%s: %s -> %s", field, compactValue(change.Old), compactValue(change.New)))
	}
	summary := parts[0]
	if len(parts) > 1 {
		summary = fmt.Sprintf("%s (+%d more)", summary, len(parts)-1)
	}
	return truncate(summary, 60)
}

func compactValue(v interface{}) string {
	if v == nil {
		return "null"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
