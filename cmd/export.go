package cmd

import (
	"fmt"

	"github.com/lehigh-university-libraries/collager/internal/report"
	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var (
		runsDir  string
		destPath string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Flatten the provenance of every saved run into a parquet file",
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := report.ExportParquet(runsDir, destPath)
			if err != nil {
				return err
			}
			fmt.Printf("Exported %d provenance rows to %s\n", rows, destPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&runsDir, "runs", "output", "Directory containing saved runs")
	cmd.Flags().StringVar(&destPath, "output", "provenance.parquet", "Destination parquet file")

	return cmd
}
