package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lehigh-university-libraries/collager/internal/planner"
	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	var (
		maxItems     int
		providerName string
		searcherName string
		datasetPath  string
	)

	cmd := &cobra.Command{
		Use:   "search \"<prompt>\"",
		Short: "Plan and execute archive searches without building a collage",
		Long: `Search runs only the planning agent and the plan executor, then prints
the deduplicated candidate pool. Useful for checking what a prompt would
discover before spending a full run on it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := args[0]

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if resolveProviderName(providerName) == "gemini" {
				return fmt.Errorf("gemini does not support the tool calls search planning requires; use openai or ollama")
			}
			provider, model, err := newProvider(providerName)
			if err != nil {
				return err
			}

			searcher, err := newSearcher(searcherName, datasetPath)
			if err != nil {
				return err
			}

			agent := planner.NewAgent(provider, model, searcher)
			plan, err := agent.PlanSearch(ctx, prompt, maxItems)
			if err != nil {
				return fmt.Errorf("search planning failed: %w", err)
			}

			fmt.Printf("Planned %d searches:\n", len(plan))
			for _, item := range plan {
				line := fmt.Sprintf("  %q", item.Keywords)
				if item.Collection != "" {
					line += fmt.Sprintf(" collection=%s", item.Collection)
				}
				if item.DateFilter != "" {
					line += fmt.Sprintf(" date=%s", item.DateFilter)
				}
				fmt.Println(line)
			}

			sources := planner.NewExecutor(searcher).Execute(ctx, plan)
			fmt.Printf("\nFound %d candidate images:\n", len(sources))
			for i := range sources {
				src := &sources[i]
				fmt.Printf("  %s  %s\n", src.ExternalID, src.Title)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxItems, "max-items", 6, "Maximum searches the planner may register")
	cmd.Flags().StringVar(&providerName, "provider", "", "LLM provider: openai or ollama (default from COLLAGER_PROVIDER)")
	cmd.Flags().StringVar(&searcherName, "searcher", "archive", "Search backend: archive or offline")
	cmd.Flags().StringVar(&datasetPath, "dataset", "", "Dataset path for the offline searcher (.parquet or .jsonl)")

	return cmd
}
