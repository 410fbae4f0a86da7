// Package main is the entry point for the bridge agent binary. The agent
// opens a single ODBC connection to the legacy GlassTrax database and exposes
// POST /query and GET /health over HTTP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Codename-11/GlassTrax-Bridge/internal/agent"
	"github.com/Codename-11/GlassTrax-Bridge/internal/config"
	"github.com/Codename-11/GlassTrax-Bridge/internal/query"
	"github.com/Codename-11/GlassTrax-Bridge/pkg/agentclient"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "glasstrax-agent",
		Short:         "ODBC query agent for the GlassTrax database",
		Long:          "Bridges the legacy ODBC-accessible GlassTrax database to HTTP clients through a declarative, allowlisted query API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	// Precedence: --config flag, then $AGENT_CONFIG, then agent.yaml.
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.ResolvePath(), "path to agent.yaml (overrides $AGENT_CONFIG)")

	rootCmd.AddCommand(newServeCmd(&configPath))
	rootCmd.AddCommand(newGenKeyCmd(&configPath))
	rootCmd.AddCommand(newCheckCmd())

	return rootCmd
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the agent HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(*configPath)
		},
	}
}

func serve(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if key := cfg.NewAPIKey(); key != "" {
		// First run: surface the plain key exactly once.
		fmt.Printf("\nA new API key has been generated. SAVE THIS KEY!\n\n  Agent API Key: %s\n\n", key)
	}

	svc := query.NewService(query.ServiceConfig{
		Conn: query.ConnConfig{
			DSN:            cfg.Database.DSN,
			ReadOnly:       cfg.Database.ReadOnly,
			ConnectTimeout: cfg.ConnectTimeout(),
		},
		AllowedTables:  cfg.Agent.AllowedTables,
		ProbeQuery:     cfg.Agent.TestQuery,
		QueryTimeout:   cfg.QueryTimeout(),
		CoerceNumerics: cfg.Agent.CoerceNumerics,
		Logger:         logger,
	})
	defer svc.Close() //nolint:errcheck

	handler := agent.NewHandler(agent.HandlerConfig{
		Service: svc,
		Keys:    cfg,
		Version: version,
		DSN:     cfg.Database.DSN,
		Logger:  logger,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Agent.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.QueryTimeout() + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down agent")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("agent listening",
		"addr", srv.Addr,
		"dsn", cfg.Database.DSN,
		"readonly", cfg.Database.ReadOnly,
		"allowed_tables", strings.Join(cfg.Agent.AllowedTables, ", "))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func newGenKeyCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "genkey",
		Short: "Generate a new API key, replacing the stored one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			// Load may have minted a key already on a fresh config file.
			key := cfg.NewAPIKey()
			if key == "" {
				key, err = cfg.RegenerateAPIKey()
				if err != nil {
					return err
				}
			}

			fmt.Printf("New agent API key (the old key no longer works):\n\n  %s\n\nConfigure it in the caller's config as the agent api_key.\n", key)
			return nil
		},
	}
}

func newCheckCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Query a running agent's health endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := agentclient.New(url, "", agentclient.WithTimeout(10*time.Second))
			defer client.Close()

			health, err := client.Health(cmd.Context())
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(health, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))

			if health.Status != "healthy" {
				return fmt.Errorf("agent is %s", health.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://localhost:8001", "agent base URL")
	return cmd
}
