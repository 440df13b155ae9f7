package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/lehigh-university-libraries/collager/internal/analysis"
	"github.com/lehigh-university-libraries/collager/internal/archive"
	"github.com/lehigh-university-libraries/collager/internal/compose"
	"github.com/lehigh-university-libraries/collager/internal/curator"
	"github.com/lehigh-university-libraries/collager/internal/hooks"
	"github.com/lehigh-university-libraries/collager/internal/images"
	"github.com/lehigh-university-libraries/collager/internal/pipeline"
	"github.com/lehigh-university-libraries/collager/internal/planner"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		canvas       string
		maxItems     int
		providerName string
		curationName string
		analysisName string
		searcherName string
		datasetPath  string
		outputDir    string
		composerName string
		background   bool
		paletteName  string
		concurrency  int
	)

	cmd := &cobra.Command{
		Use:   "run \"<prompt>\"",
		Short: "Build a collage from a creative prompt",
		Example: `  # Default canvas, live archive search
  collager run "a dream about lighthouses" --provider openai

  # Offline dataset, agentic composition with a background and color grade
  collager run "market day, 1910" --searcher offline --dataset ./records.parquet \
    --composer agentic --background --palette vintage`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := args[0]

			width, height, err := parseCanvas(canvas)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			planName, chatName := splitProviderNames(providerName, curationName)
			if planName != resolveProviderName(providerName) {
				slog.Info("Gemini cannot plan searches; planning with openai", "curation_provider", chatName)
			}
			planProvider, planModel, err := newProvider(planName)
			if err != nil {
				return err
			}
			chatProvider, chatModel := planProvider, planModel
			if chatName != planName {
				chatProvider, chatModel, err = newProvider(chatName)
				if err != nil {
					return err
				}
			}

			searcher, err := newSearcher(searcherName, datasetPath)
			if err != nil {
				return err
			}

			backend, err := analysis.NewBackend(analysisName)
			if err != nil {
				return err
			}

			p := pipeline.New()
			p.Planner = planner.NewAgent(planProvider, planModel, searcher)
			p.Executor = planner.NewExecutor(searcher)
			p.Fetcher = images.NewFetcher()
			p.Analysis = backend
			p.Curator = curator.New(chatProvider, chatModel)
			p.Annotator = analysis.NewLLMAnnotator(chatProvider, chatModel)
			p.OutputDir = outputDir
			p.MaxItems = maxItems
			p.Concurrency = concurrency

			if background {
				p.Hooks.Register(hooks.AfterCuration, hooks.SelectBackground(chatProvider, chatModel))
			}
			if paletteName != "" {
				mode, err := hooks.ParsePaletteMode(paletteName)
				if err != nil {
					return err
				}
				p.Hooks.Register(hooks.PreComposition, hooks.ColorGrade(mode))
			}
			switch composerName {
			case "", "default":
			case "agentic":
				p.Hooks.RegisterOverride(hooks.CompositionStrategy, compose.Agentic(chatProvider, chatModel, nil))
			default:
				return fmt.Errorf("unsupported composer: %s", composerName)
			}

			result, err := p.Run(ctx, prompt, width, height)
			if err != nil {
				return err
			}

			fmt.Printf("Collage saved to: %s\n", result.RunDir)
			fmt.Printf("  sources: %d, fragments placed: %d\n", len(result.Sources), result.Fragments)
			return nil
		},
	}

	cmd.Flags().StringVar(&canvas, "canvas", "1024x1024", "Canvas size as WIDTHxHEIGHT")
	cmd.Flags().IntVar(&maxItems, "max-items", 6, "Maximum searches the planner may register")
	cmd.Flags().StringVar(&providerName, "provider", "", "LLM provider: openai, ollama, or gemini (default from COLLAGER_PROVIDER; gemini plans via openai)")
	cmd.Flags().StringVar(&curationName, "curation-provider", "", "Provider for curation and annotation (default: same as --provider)")
	cmd.Flags().StringVar(&analysisName, "analysis", "placeholder", "Segmentation backend: placeholder, detector, or masker")
	cmd.Flags().StringVar(&searcherName, "searcher", "archive", "Search backend: archive or offline")
	cmd.Flags().StringVar(&datasetPath, "dataset", "", "Dataset path for the offline searcher (.parquet or .jsonl)")
	cmd.Flags().StringVar(&outputDir, "output", "output", "Directory for run artifacts")
	cmd.Flags().StringVar(&composerName, "composer", "default", "Composition strategy: default or agentic")
	cmd.Flags().BoolVar(&background, "background", false, "Ask the model to pick a background source")
	cmd.Flags().StringVar(&paletteName, "palette", "", "Color grade: pastel, vivid, vintage, or faded")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Concurrent downloads and segmentation calls")

	return cmd
}

// parseCanvas parses a WIDTHxHEIGHT string into positive dimensions.
func parseCanvas(s string) (int, int, error) {
	parts := strings.SplitN(strings.ToLower(s), "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid canvas %q: expected WIDTHxHEIGHT", s)
	}
	width, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid canvas width %q: %w", parts[0], err)
	}
	height, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid canvas height %q: %w", parts[1], err)
	}
	if width < 1 || height < 1 {
		return 0, 0, fmt.Errorf("invalid canvas %q: dimensions must be positive", s)
	}
	return width, height, nil
}

// newSearcher builds the named search backend.
func newSearcher(name, datasetPath string) (archive.Searcher, error) {
	switch name {
	case "", "archive":
		return archive.NewClient(), nil
	case "offline":
		if datasetPath == "" {
			return nil, fmt.Errorf("--dataset is required with the offline searcher")
		}
		return archive.NewOfflineSearcher(datasetPath)
	default:
		return nil, fmt.Errorf("unsupported searcher: %s", name)
	}
}
