package cmd

import (
	"github.com/lehigh-university-libraries/collager/internal/report"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "inspect <run-dir>",
		Short: "Summarize a saved run's provenance as YAML",
		Example: `  # Print the report to stdout
  collager inspect output/2026-08-29_10-15-42

  # Write it to a file
  collager inspect output/2026-08-29_10-15-42 --output report.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := report.BuildReport(args[0])
			if err != nil {
				return err
			}
			return r.WriteYAML(outputPath)
		},
	}

	cmd.Flags().StringVar(&outputPath, "output", "", "Write the YAML report here instead of stdout")

	return cmd
}
