package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sparrowvision/internal/connector"
	"sparrowvision/internal/identity"
	"sparrowvision/internal/style"
)

var (
	syncCursor string
	syncOutput string
)

var syncCmd = &cobra.Command{
	Use:   "sync <platform>",
	Short: "Sync a platform's user directory",
	Long: `Page through the platform's user directory with the credentials
from the config file, print the sync report, and optionally export the
normalized users as JSON.

A partial sync (network failure midway, record ceiling reached) still
reports and exports everything fetched so far.`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncCursor, "cursor", "", "continuation cursor from a previous run")
	syncCmd.Flags().StringVarP(&syncOutput, "output", "o", "", "write the normalized users to a JSON file")
}

// syncExport is the JSON document written by --output.
type syncExport struct {
	Platform   string                `json:"platform"`
	ExportedAt time.Time             `json:"exported_at"`
	Result     *connector.SyncResult `json:"result"`
}

func runSync(cmd *cobra.Command, args []string) error {
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

	fmt.Printf("Syncing %s...\n", conn.DisplayName())
	result, err := conn.SyncUsers(cmd.Context(), syncCursor)
	if err != nil {
		fmt.Printf("%s %s\n", style.ErrorPrefix, err)
		if hint := connector.Hint(err); hint != "" {
			fmt.Printf("%s %s\n", style.WarningPrefix, hint)
		}
		return fmt.Errorf("sync failed")
	}

	printSyncReport(result, fc)

	if syncOutput != "" {
		if err := writeExport(syncOutput, &syncExport{
			Platform:   platform,
			ExportedAt: time.Now().UTC(),
			Result:     result,
		}); err != nil {
			return err
		}
		fmt.Printf("%s exported %d users to %s\n", style.SuccessPrefix, result.UsersCount, syncOutput)
	}

	if !result.Success {
		return fmt.Errorf("sync completed with %d errors", len(result.Errors))
	}
	return nil
}

func printSyncReport(result *connector.SyncResult, fc *FileConfig) {
	if result.Success {
		fmt.Printf("%s synced %d users in %s\n", style.SuccessPrefix,
			result.UsersCount, result.SyncDuration.Round(time.Millisecond))
	} else {
		fmt.Printf("%s partial sync: %d users, %d errors\n", style.WarningPrefix,
			result.UsersCount, len(result.Errors))
	}

	fmt.Printf("  pages: %d  api calls: %d  active: %d  suspended: %d\n",
		result.Pages, result.APICalls, result.ActiveUsers, result.SuspendedUsers)
	if result.NextCursor != "" {
		fmt.Printf("  %s resume with --cursor %q\n", style.Dim.Render("more records available;"), result.NextCursor)
	}

	now := time.Now().UTC()
	highRisk := identity.HighRisk(result.Users, fc.riskThreshold())
	inactive := identity.Inactive(result.Users, now, fc.inactiveDays())
	privileged := identity.Privileged(result.Users)

	fmt.Printf("  high risk (>=%d): %d  inactive (%dd): %d  privileged: %d\n",
		fc.riskThreshold(), len(highRisk), fc.inactiveDays(), len(inactive), len(privileged))

	for _, u := range highRisk {
		fmt.Printf("  %s %s score=%d status=%s\n", style.WarningPrefix, u.Email, u.RiskScore, u.Status)
	}
	for _, e := range result.Errors {
		fmt.Printf("  %s %s\n", style.ErrorPrefix, e)
	}
}

func writeExport(path string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
