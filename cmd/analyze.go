package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/repo-health/internal/apperr"
	"github.com/naka-gawa/repo-health/internal/config"
	"github.com/naka-gawa/repo-health/internal/gateway"
	"github.com/naka-gawa/repo-health/internal/usecase"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <github-url>",
	Short: "Analyzes a GitHub URL and outputs the report as JSON",
	Long: `Classifies a github.com URL as a user, organization, or repository, runs the
matching analysis, and prints the result in JSON format.`,
	Example: `  repo-health analyze https://github.com/denoland/deno
  repo-health analyze github.com/octocat`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		logger := newLogger(cmd, os.Stderr)

		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if !cfg.GitHub.HasToken() {
			fmt.Fprintf(os.Stderr, "Error: %s environment variable is not set.\n", cfg.GitHub.TokenEnv)
			os.Exit(1)
		}

		// Inject dependencies and run the main business logic.
		githubGateway, err := gateway.NewGitHubGateway(cfg.GitHub, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create GitHub gateway: %v\n", err)
			os.Exit(1)
		}
		analyzer := usecase.NewAnalyzer(githubGateway, logger,
			usecase.WithConcurrency(cfg.GitHub.MaxConcurrentRequests),
			usecase.WithActiveWindow(cfg.Analysis.ActiveWindow),
		)

		report, err := analyzer.AnalyzeURL(ctx, args[0])
		if err != nil {
			if apperr.Is(err, apperr.KindValidation) {
				fmt.Fprintf(os.Stderr, "Error: %s\n", apperr.UserMessage(err))
			} else {
				fmt.Fprintf(os.Stderr, "Failed to analyze %s: %v\n", args[0], err)
			}
			os.Exit(1)
		}

		// Marshal the results into a pretty-printed JSON string.
		jsonData, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to marshal results to JSON: %v\n", err)
			os.Exit(1)
		}

		fmt.Println(string(jsonData))
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
