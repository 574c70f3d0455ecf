package chatcli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage configuration profiles",
}

var profilesListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List configuration profiles",
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		var resp ProfileList
		if err := client.GetJSON("/api/settings/profiles", &resp); err != nil {
			exitWithError(cmd, err)
			return
		}
		if done, err := renderJSON(resp.Profiles); err != nil {
			exitWithError(cmd, err)
			return
		} else if done {
			return
		}
		tw := newTable()
		fmt.Fprintf(tw, "ID\tNAME\tDEFAULT\tDESCRIPTION\tUPDATED\n")
		for _, p := range resp.Profiles {
			description := p.Description
			if description == "" {
				description = "-"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
				p.ID,
				p.Name,
				boolMark(p.IsDefault),
				truncate(description, 40),
				relativeTime(p.UpdatedAt))
		}
		flushTable(tw)
	},
}

var profilesGetCmd = &cobra.Command{
	Use:   "get <profile-id>",
	Short: "Describe a profile",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		var profile ProfileDetail
		if err := client.GetJSON("/api/settings/profiles/"+args[0], &profile); err != nil {
			exitWithError(cmd, err)
			return
		}
		if done, err := renderJSON(profile); err != nil {
			exitWithError(cmd, err)
			return
		} else if done {
			return
		}
		printProfileDetail(profile)
	},
}

var profilesDefaultCmd = &cobra.Command{
	Use:   "default",
	Short: "Describe the default profile",
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		var profile ProfileDetail
		if err := client.GetJSON("/api/settings/profiles/default", &profile); err != nil {
			exitWithError(cmd, err)
			return
		}
		if done, err := renderJSON(profile); err != nil {
			exitWithError(cmd, err)
			return
		} else if done {
			return
		}
		printProfileDetail(profile)
	},
}

var (
	createDescription string
	createCopyFrom    int64
)

var profilesCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a profile",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		payload := map[string]interface{}{
			"name":        args[0],
			"description": createDescription,
		}
		if createCopyFrom > 0 {
			payload["copyFromId"] = createCopyFrom
		}
		var profile ProfileDetail
		if err := client.PostJSON("/api/settings/profiles", payload, &profile); err != nil {
			exitWithError(cmd, err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Profile %d (%s) created.\n", profile.ID, profile.Name)
	},
}

var deleteYes bool

var profilesDeleteCmd = &cobra.Command{
	Use:   "delete <profile-id>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		if !deleteYes {
			ok, err := confirmPrompt(fmt.Sprintf("Delete profile %s and its chat history links? [y/N] ", args[0]), cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil || !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return
			}
		}
		if err := client.DeleteJSON("/api/settings/profiles/"+args[0], nil); err != nil {
			exitWithError(cmd, err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Profile %s deleted.\n", args[0])
	},
}

var profilesSetDefaultCmd = &cobra.Command{
	Use:   "set-default <profile-id>",
	Short: "Mark a profile as the default",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		var profile ProfileDetail
		if err := client.PostJSON("/api/settings/profiles/"+args[0]+"/set-default", map[string]string{}, &profile); err != nil {
			exitWithError(cmd, err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Profile %d (%s) is now the default.\n", profile.ID, profile.Name)
	},
}

var profilesDuplicateCmd = &cobra.Command{
	Use:   "duplicate <profile-id> <new-name>",
	Short: "Duplicate a profile under a new name",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		payload := map[string]string{"newName": args[1]}
		var profile ProfileDetail
		if err := client.PostJSON("/api/settings/profiles/"+args[0]+"/duplicate", payload, &profile); err != nil {
			exitWithError(cmd, err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Profile %d (%s) created from %s.\n", profile.ID, profile.Name, args[0])
	},
}

var profilesLoadCmd = &cobra.Command{
	Use:   "load <profile-id>",
	Short: "Load a profile into the running app settings",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		var result LoadResult
		if err := client.PostJSON("/api/settings/profiles/"+args[0]+"/load", map[string]string{}, &result); err != nil {
			exitWithError(cmd, err)
			return
		}
		if done, err := renderJSON(result); err != nil {
			exitWithError(cmd, err)
			return
		} else if done {
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Loaded profile %d (%s), endpoint %s.\n",
			result.Settings.ProfileID, result.Settings.ProfileName, result.Settings.LLMEndpoint)
	},
}

var exportPath string

var profilesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all profiles as JSON",
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		var doc map[string]interface{}
		if err := client.GetJSON("/api/settings/profiles/export", &doc); err != nil {
			exitWithError(cmd, err)
			return
		}
		if exportPath == "" || exportPath == "-" {
			_ = printJSON(doc)
			return
		}
		if err := writeJSONFile(doc, exportPath); err != nil {
			exitWithError(cmd, err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported profiles to %s.\n", exportPath)
	},
}

var profilesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import profiles from a JSON export",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		payload, err := readInputFile(args[0])
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		var result ImportResult
		if err := client.PostRawJSON("/api/settings/profiles/import", payload, &result); err != nil {
			exitWithError(cmd, err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d profile(s), skipped %d.\n", len(result.Created), len(result.Skipped))
		for _, name := range result.Skipped {
			fmt.Fprintf(cmd.OutOrStdout(), "  skipped: %s (name already exists)\n", name)
		}
	},
}

func init() {
	profilesCreateCmd.Flags().StringVar(&createDescription, "description", "", "Profile description")
	profilesCreateCmd.Flags().Int64Var(&createCopyFrom, "copy-from", 0, "Clone sub-configs from this profile ID")
	profilesDeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Skip the confirmation prompt")
	profilesExportCmd.Flags().StringVarP(&exportPath, "file", "f", "", "File path to write (defaults to stdout)")
	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesGetCmd)
	profilesCmd.AddCommand(profilesDefaultCmd)
	profilesCmd.AddCommand(profilesCreateCmd)
	profilesCmd.AddCommand(profilesDeleteCmd)
	profilesCmd.AddCommand(profilesSetDefaultCmd)
	profilesCmd.AddCommand(profilesDuplicateCmd)
	profilesCmd.AddCommand(profilesLoadCmd)
	profilesCmd.AddCommand(profilesExportCmd)
	profilesCmd.AddCommand(profilesImportCmd)
}

type Profile struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsDefault   bool      `json:"isDefault"`
	CreatedAt   time.Time `json:"createdAt"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
	UpdatedBy   string    `json:"updatedBy,omitempty"`
}

type AIInfraConfig struct {
	ProfileID      int64   `json:"profileId"`
	LLMEndpoint    string  `json:"llmEndpoint"`
	LLMTemperature float64 `json:"llmTemperature"`
	LLMMaxTokens   int     `json:"llmMaxTokens"`
}

type MLflowConfig struct {
	ProfileID      int64  `json:"profileId"`
	ExperimentName string `json:"experimentName"`
}

type PromptsConfig struct {
	ProfileID          int64  `json:"profileId"`
	SystemPrompt       string `json:"systemPrompt"`
	UserPromptTemplate string `json:"userPromptTemplate"`
}

type ProfileDetail struct {
	Profile
	AIInfra *AIInfraConfig `json:"aiInfra,omitempty"`
	MLflow  *MLflowConfig  `json:"mlflow,omitempty"`
	Prompts *PromptsConfig `json:"prompts,omitempty"`
}

type ProfileList struct {
	Profiles []Profile `json:"profiles"`
	Count    int       `json:"count"`
}

type LoadResult struct {
	Loaded   bool     `json:"loaded"`
	Settings Snapshot `json:"settings"`
}

type Snapshot struct {
	ProfileID      int64     `json:"profileId"`
	ProfileName    string    `json:"profileName"`
	LLMEndpoint    string    `json:"llmEndpoint"`
	LLMTemperature float64   `json:"llmTemperature"`
	LLMMaxTokens   int       `json:"llmMaxTokens"`
	ExperimentName string    `json:"experimentName"`
	LoadedAt       time.Time `json:"loadedAt"`
}

type ImportResult struct {
	Created []string `json:"created"`
	Skipped []string `json:"skipped"`
}

func printProfileDetail(profile ProfileDetail) {
	tw := newTable()
	fmt.Fprintf(tw, "Field\tValue\n")
	fmt.Fprintf(tw, "ID\t%d\n", profile.ID)
	fmt.Fprintf(tw, "Name\t%s\n", profile.Name)
	fmt.Fprintf(tw, "Description\t%s\n", profile.Description)
	fmt.Fprintf(tw, "Default\t%t\n", profile.IsDefault)
	fmt.Fprintf(tw, "Created\t%s by %s\n", profile.CreatedAt.Format(time.RFC3339), profile.CreatedBy)
	fmt.Fprintf(tw, "Updated\t%s by %s\n", profile.UpdatedAt.Format(time.RFC3339), profile.UpdatedBy)
	if profile.AIInfra != nil {
		fmt.Fprintf(tw, "Endpoint\t%s\n", profile.AIInfra.LLMEndpoint)
		fmt.Fprintf(tw, "Temperature\t%.2f\n", profile.AIInfra.LLMTemperature)
		fmt.Fprintf(tw, "Max Tokens\t%d\n", profile.AIInfra.LLMMaxTokens)
	}
	if profile.MLflow != nil {
		fmt.Fprintf(tw, "Experiment\t%s\n", profile.MLflow.ExperimentName)
	}
	if profile.Prompts != nil {
		fmt.Fprintf(tw, "System Prompt\t%s\n", truncate(profile.Prompts.SystemPrompt, 80))
		fmt.Fprintf(tw, "User Template\t%s\n", truncate(profile.Prompts.UserPromptTemplate, 80))
	}
	flushTable(tw)
}

func readInputFile(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(filepath.Clean(path))
}

func writeJSONFile(doc interface{}, path string) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
