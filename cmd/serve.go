package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/repo-health/internal/config"
	"github.com/naka-gawa/repo-health/internal/gateway"
	"github.com/naka-gawa/repo-health/internal/server"
	"github.com/naka-gawa/repo-health/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the health analyses over HTTP",
	Long: `Starts the HTTP service exposing /analyze_repo, /analyze_user, /analyze_org,
and /analyze_github. The GitHub token is read from GITHUB_TOKEN unless the
config file names another variable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(cmd, os.Stderr)

		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port, _ = cmd.Flags().GetInt("port")
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		if !cfg.GitHub.HasToken() {
			// The service still starts; analysis routes answer 500 until a token is configured.
			logger.Warn("GitHub token is not set", "env", cfg.GitHub.TokenEnv)
		}

		// Inject dependencies.
		githubGateway, err := gateway.NewGitHubGateway(cfg.GitHub, logger)
		if err != nil {
			return fmt.Errorf("failed to create GitHub gateway: %w", err)
		}
		analyzer := usecase.NewAnalyzer(githubGateway, logger,
			usecase.WithConcurrency(cfg.GitHub.MaxConcurrentRequests),
			usecase.WithActiveWindow(cfg.Analysis.ActiveWindow),
		)

		srv := &http.Server{
			Addr:              ":" + strconv.Itoa(cfg.Port),
			Handler:           server.New(analyzer, cfg, logger),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			logger.Info("Listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("server failed: %w", err)
		case <-ctx.Done():
		}

		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", config.DefaultPort, "Port to listen on (overrides PORT and the config file)")
}
