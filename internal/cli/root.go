// Package cli wires the adpulse commands: serve, tail, token, healthcheck
// and the self-upgrade flags.
package cli

import (
	"github.com/spf13/cobra"
)

var Version string

var (
	flagDatabaseURL string
	flagPort        string
)

// RootCmd represents the root command
var RootCmd = &cobra.Command{
	Use:   "adpulse",
	Short: "Campaign analytics with live dashboards",
	Long: `adpulse - marketing campaign analytics.

adpulse stores campaign, segment and notification data in PostgreSQL and
pushes live updates to dashboards over WebSocket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// No subcommand defaults to serve, matching container entrypoints.
		if len(args) == 0 {
			return runServe(cmd, nil)
		}
		return cmd.Help()
	},
}

// Execute is called by main
func Execute(version string) error {
	Version = version
	RootCmd.Version = version
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().StringVar(&flagDatabaseURL, "database-url", "", "PostgreSQL connection string (overrides config and DATABASE_URL)")
	RootCmd.PersistentFlags().StringVar(&flagPort, "port", "", "HTTP port (overrides config and PORT)")
	setupSelfUpgrade()
}
