package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"sparrowvision/internal/connector"
	"sparrowvision/internal/style"
)

var connectorsCmd = &cobra.Command{
	Use:   "connectors",
	Short: "List supported platforms",
	RunE:  runConnectors,
}

var checkCmd = &cobra.Command{
	Use:   "check <platform>",
	Short: "Test connectivity and credentials for a platform",
	Long: `Run the platform's connection test with the credentials from the
config file and print a diagnosis. Failures include a corrective hint
(rotate the key, grant a scope, check the network).`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func runConnectors(cmd *cobra.Command, args []string) error {
	registry := connector.NewRegistry()
	for _, name := range registry.Names() {
		conn, err := registry.New(name, connector.Config{})
		if err != nil {
			continue
		}
		fmt.Printf("%-18s %s\n", name, style.Dim.Render(conn.DisplayName()))
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	platform := args[0]

	fc, err := loadConfig()
	if err != nil {
		return err
	}
	cfg, err := fc.connectorConfig(platform)
	if err != nil {
		return err
	}

	registry := connector.NewRegistry()
	conn, err := registry.New(platform, cfg)
	if err != nil {
		return fmt.Errorf("unknown platform %q", platform)
	}

	fmt.Printf("Testing %s connection...\n", conn.DisplayName())
	if err := conn.TestConnection(cmd.Context()); err != nil {
		fmt.Printf("%s %s\n", style.ErrorPrefix, err)
		if hint := connector.Hint(err); hint != "" {
			fmt.Printf("%s %s\n", style.WarningPrefix, hint)
		}
		return fmt.Errorf("connection test failed")
	}

	fmt.Printf("%s %s connection OK\n", style.SuccessPrefix, conn.DisplayName())
	return nil
}
