package chatcli

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect and edit profile sub-configurations",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <domain> <profile-id>",
	Short: "Show a sub-configuration (ai-infra, mlflow or prompts)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		domain, id := args[0], args[1]
		switch domain {
		case "ai-infra":
			var cfg AIInfraConfig
			if err := client.GetJSON("/api/settings/ai-infra/"+id, &cfg); err != nil {
				exitWithError(cmd, err)
				return
			}
			if done, err := renderJSON(cfg); err != nil {
				exitWithError(cmd, err)
				return
			} else if done {
				return
			}
			tw := newTable()
			fmt.Fprintf(tw, "Field\tValue\n")
			fmt.Fprintf(tw, "Endpoint\t%s\n", cfg.LLMEndpoint)
			fmt.Fprintf(tw, "Temperature\t%.2f\n", cfg.LLMTemperature)
			fmt.Fprintf(tw, "Max Tokens\t%d\n", cfg.LLMMaxTokens)
			flushTable(tw)
		case "mlflow":
			var cfg MLflowConfig
			if err := client.GetJSON("/api/settings/mlflow/"+id, &cfg); err != nil {
				exitWithError(cmd, err)
				return
			}
			if done, err := renderJSON(cfg); err != nil {
				exitWithError(cmd, err)
				return
			} else if done {
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Experiment: %s\n", cfg.ExperimentName)
		case "prompts":
			var cfg PromptsConfig
			if err := client.GetJSON("/api/settings/prompts/"+id, &cfg); err != nil {
				exitWithError(cmd, err)
				return
			}
			if done, err := renderJSON(cfg); err != nil {
				exitWithError(cmd, err)
				return
			} else if done {
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "System prompt:\n%s\n\nUser template:\n%s\n", cfg.SystemPrompt, cfg.UserPromptTemplate)
		default:
			exitWithError(cmd, fmt.Errorf("unknown domain %q (expected ai-infra, mlflow or prompts)", domain))
		}
	},
}

var (
	setEndpoint    string
	setTemperature float64
	setMaxTokens   int
)

var settingsSetAICmd = &cobra.Command{
	Use:   "set-ai-infra <profile-id>",
	Short: "Update the LLM serving configuration of a profile",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		payload := map[string]interface{}{}
		if cmd.Flags().Changed("endpoint") {
			payload["llmEndpoint"] = setEndpoint
		}
		if cmd.Flags().Changed("temperature") {
			payload["llmTemperature"] = setTemperature
		}
		if cmd.Flags().Changed("max-tokens") {
			payload["llmMaxTokens"] = setMaxTokens
		}
		if len(payload) == 0 {
			exitWithError(cmd, fmt.Errorf("nothing to update; pass --endpoint, --temperature or --max-tokens"))
			return
		}
		var cfg AIInfraConfig
		if err := client.PutJSON("/api/settings/ai-infra/"+args[0], payload, &cfg); err != nil {
			exitWithError(cmd, err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "AI infra updated: endpoint=%s temperature=%.2f maxTokens=%d\n",
			cfg.LLMEndpoint, cfg.LLMTemperature, cfg.LLMMaxTokens)
	},
}

var setExperiment string

var settingsSetMLflowCmd = &cobra.Command{
	Use:   "set-mlflow <profile-id>",
	Short: "Update the MLflow experiment of a profile",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		if setExperiment == "" {
			exitWithError(cmd, fmt.Errorf("--experiment is required"))
			return
		}
		payload := map[string]string{"experimentName": setExperiment}
		var cfg MLflowConfig
		if err := client.PutJSON("/api/settings/mlflow/"+args[0], payload, &cfg); err != nil {
			exitWithError(cmd, err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "MLflow experiment updated: %s\n", cfg.ExperimentName)
	},
}

var (
	setSystemPrompt string
	setUserTemplate string
)

var settingsSetPromptsCmd = &cobra.Command{
	Use:   "set-prompts <profile-id>",
	Short: "Update the prompts of a profile",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		payload := map[string]interface{}{}
		if cmd.Flags().Changed("system-prompt") {
			payload["systemPrompt"] = setSystemPrompt
		}
		if cmd.Flags().Changed("user-template") {
			payload["userPromptTemplate"] = setUserTemplate
		}
		if len(payload) == 0 {
			exitWithError(cmd, fmt.Errorf("nothing to update; pass --system-prompt or --user-template"))
			return
		}
		var cfg PromptsConfig
		if err := client.PutJSON("/api/settings/prompts/"+args[0], payload, &cfg); err != nil {
			exitWithError(cmd, err)
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Prompts updated.")
	},
}

var settingsEndpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "List serving endpoints available in the workspace",
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		var resp EndpointList
		if err := client.GetJSON("/api/settings/ai-infra/endpoints/available", &resp); err != nil {
			exitWithError(cmd, err)
			return
		}
		if done, err := renderJSON(resp.Endpoints); err != nil {
			exitWithError(cmd, err)
			return
		} else if done {
			return
		}
		tw := newTable()
		fmt.Fprintf(tw, "NAME\tREADY\tTASK\n")
		for _, ep := range resp.Endpoints {
			fmt.Fprintf(tw, "%s\t%t\t%s\n", ep.Name, ep.Ready, ep.Task)
		}
		flushTable(tw)
	},
}

var settingsValidateEndpointCmd = &cobra.Command{
	Use:   "validate-endpoint <name>",
	Short: "Check that a serving endpoint exists and is ready",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		path := "/api/settings/ai-infra/validate?endpoint=" + url.QueryEscape(args[0])
		var result CheckResult
		if err := client.PostJSON(path, nil, &result); err != nil {
			exitWithError(cmd, err)
			return
		}
		printCheckResult(cmd, result)
	},
}

var settingsValidateExperimentCmd = &cobra.Command{
	Use:   "validate-experiment <name>",
	Short: "Check that an MLflow experiment exists",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		path := "/api/settings/mlflow/validate?experiment_name=" + url.QueryEscape(args[0])
		var result CheckResult
		if err := client.PostJSON(path, nil, &result); err != nil {
			exitWithError(cmd, err)
			return
		}
		printCheckResult(cmd, result)
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload the active settings from the default profile",
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		var result ReloadResult
		if err := client.PostJSON("/api/settings/profiles/reload", map[string]string{}, &result); err != nil {
			exitWithError(cmd, err)
			return
		}
		if done, err := renderJSON(result); err != nil {
			exitWithError(cmd, err)
			return
		} else if done {
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reloaded profile %d (%s), endpoint %s.\n",
			result.Settings.ProfileID, result.Settings.ProfileName, result.Settings.LLMEndpoint)
	},
}

func init() {
	settingsSetAICmd.Flags().StringVar(&setEndpoint, "endpoint", "", "Serving endpoint name")
	settingsSetAICmd.Flags().Float64Var(&setTemperature, "temperature", 0, "Sampling temperature (0.0 to 1.0)")
	settingsSetAICmd.Flags().IntVar(&setMaxTokens, "max-tokens", 0, "Maximum completion tokens")
	settingsSetMLflowCmd.Flags().StringVar(&setExperiment, "experiment", "", "MLflow experiment path")
	settingsSetPromptsCmd.Flags().StringVar(&setSystemPrompt, "system-prompt", "", "System prompt text")
	settingsSetPromptsCmd.Flags().StringVar(&setUserTemplate, "user-template", "", "User prompt template (must contain {question})")
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetAICmd)
	settingsCmd.AddCommand(settingsSetMLflowCmd)
	settingsCmd.AddCommand(settingsSetPromptsCmd)
	settingsCmd.AddCommand(settingsEndpointsCmd)
	settingsCmd.AddCommand(settingsValidateEndpointCmd)
	settingsCmd.AddCommand(settingsValidateExperimentCmd)
	settingsCmd.AddCommand(reloadCmd)
}

type EndpointList struct {
	Endpoints []EndpointInfo `json:"endpoints"`
	Count     int            `json:"count"`
}

type EndpointInfo struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
	Task  string `json:"task"`
}

type CheckResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

type ReloadResult struct {
	Reloaded bool     `json:"reloaded"`
	Settings Snapshot `json:"settings"`
}

type HistoryEntry struct {
	ID        int64                  `json:"id"`
	ProfileID int64                  `json:"profileId"`
	Domain    string                 `json:"domain"`
	Action    string                 `json:"action"`
	ChangedBy string                 `json:"changedBy"`
	Changes   map[string]FieldChange `json:"changes"`
	Timestamp time.Time              `json:"timestamp"`
}

type FieldChange struct {
	Old interface{} `json:"old"`
	New interface{} `json:"new"`
}

func printCheckResult(cmd *cobra.Command, result CheckResult) {
	if result.Valid {
		fmt.Fprintf(cmd.OutOrStdout(), "OK: %s\n", result.Message)
		return
	}
	exitWithError(cmd, fmt.Errorf("invalid: %s", result.Message))
}
