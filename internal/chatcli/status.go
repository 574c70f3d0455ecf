package chatcli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show service status and active settings",
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		var info SystemInfo
		if err := client.GetJSON("/system/info", &info); err != nil {
			exitWithError(cmd, err)
			return
		}
		if done, err := renderJSON(info); err != nil {
			exitWithError(cmd, err)
			return
		} else if done {
			return
		}

		tw := newTable()
		fmt.Fprintf(tw, "Field\tValue\n")
		fmt.Fprintf(tw, "Service\t%s\n", info.Service)
		fmt.Fprintf(tw, "Version\t%s\n", info.Version)
		fmt.Fprintf(tw, "Environment\t%s\n", info.Environment)
		fmt.Fprintf(tw, "Database\t%s\n", info.Database)
		if info.Settings != nil {
			for key, value := range info.Settings {
				fmt.Fprintf(tw, "Settings %s\t%v\n", key, value)
			}
		}
		flushTable(tw)
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Stream configuration change events",
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := mustClient()
		if err != nil {
			exitWithError(cmd, err)
			return
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		err = client.StreamEvents(ctx, func(evt EventEnvelope) bool {
			if outputFormat == "json" {
				_ = printJSON(evt)
				return true
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-24s %v\n",
				evt.Timestamp.Format(time.RFC3339), evt.Type, evt.Data)
			return true
		})
		if err != nil && ctx.Err() == nil {
			exitWithError(cmd, err)
		}
	},
}

type SystemInfo struct {
	Service     string                 `json:"service"`
	Version     string                 `json:"version"`
	Environment string                 `json:"environment"`
	GoVersion   string                 `json:"goVersion"`
	Database    string                 `json:"database"`
	Settings    map[string]interface{} `json:"settings"`
}
