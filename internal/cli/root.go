// Package cli implements the svctl command line tool: offline connector
// diagnostics, ad-hoc syncs, and CSV processing without a running server.
package cli

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "svctl",
	Short: "SparrowVision identity ingestion tool",
	Long: `svctl runs identity ingestion tasks directly from the terminal.

Connector credentials come from a YAML config file (default
~/.sparrowvision.yaml). Sync output can be exported as JSON for
downstream tooling.

Examples:
  svctl connectors                  # List supported platforms
  svctl check okta                  # Test stored Okta credentials
  svctl sync okta -o users.json     # Sync and export
  svctl csv process users.csv       # Run a file through the CSV pipeline
  svctl csv template standard       # Print a template CSV`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config file")

	rootCmd.AddCommand(connectorsCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(csvCmd)
}
