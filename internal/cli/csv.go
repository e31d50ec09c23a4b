package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sparrowvision/internal/csvimport"
	"sparrowvision/internal/style"
)

var (
	csvTemplateID string
	csvOutput     string
)

var csvCmd = &cobra.Command{
	Use:   "csv",
	Short: "Process CSV files and manage templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var csvProcessCmd = &cobra.Command{
	Use:   "process <file>",
	Short: "Run a CSV file through the ingestion pipeline",
	Long: `Parse a delimited file, auto-detect its column mapping, and print
the processing report. Rows that cannot be processed are reported
individually; the rest still import.`,
	Args: cobra.ExactArgs(1),
	RunE: runCSVProcess,
}

var csvTemplateCmd = &cobra.Command{
	Use:   "template <id>",
	Short: "Print a CSV template with sample rows",
	Args:  cobra.ExactArgs(1),
	RunE:  runCSVTemplate,
}

var csvTemplatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List available CSV templates",
	RunE:  runCSVTemplates,
}

func init() {
	csvProcessCmd.Flags().StringVarP(&csvTemplateID, "template", "t", "", "template ID seeding the column mapping")
	csvProcessCmd.Flags().StringVarP(&csvOutput, "output", "o", "", "write the normalized users to a JSON file")

	csvCmd.AddCommand(csvProcessCmd)
	csvCmd.AddCommand(csvTemplateCmd)
	csvCmd.AddCommand(csvTemplatesCmd)
}

func runCSVProcess(cmd *cobra.Command, args []string) error {
	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", args[0], err)
	}

	result := csvimport.Process(content, csvimport.Options{TemplateID: csvTemplateID})

	if result.Success {
		fmt.Printf("%s processed %d rows in %s\n", style.SuccessPrefix,
			result.ProcessedRows, result.Duration.Round(time.Millisecond))
	} else {
		fmt.Printf("%s processing failed\n", style.ErrorPrefix)
	}
	if result.SkippedRows > 0 {
		fmt.Printf("  skipped rows: %d\n", result.SkippedRows)
	}
	for _, e := range result.Errors {
		fmt.Printf("  %s %s\n", style.ErrorPrefix, e)
	}
	for _, w := range result.Warnings {
		fmt.Printf("  %s %s\n", style.WarningPrefix, w)
	}

	if csvOutput != "" && len(result.Users) > 0 {
		if err := writeExport(csvOutput, result); err != nil {
			return err
		}
		fmt.Printf("%s exported %d users to %s\n", style.SuccessPrefix, len(result.Users), csvOutput)
	}

	if !result.Success {
		return fmt.Errorf("no rows could be processed")
	}
	return nil
}

func runCSVTemplate(cmd *cobra.Command, args []string) error {
	content, err := csvimport.GenerateTemplate(args[0])
	if err != nil {
		return err
	}
	fmt.Print(string(content))
	return nil
}

func runCSVTemplates(cmd *cobra.Command, args []string) error {
	for _, t := range csvimport.Templates() {
		fmt.Printf("%-18s %s\n", t.ID, style.Dim.Render(t.Description))
	}
	return nil
}
