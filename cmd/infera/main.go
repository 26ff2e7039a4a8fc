// Package main is the CLI entry point for the Infera gateway.
//
// Infera ingests Slack workspace messages via webhook, classifies them,
// coalesces bursts per channel, and dispatches batches to an LLM orchestrator
// that documents design decisions in Notion through MCP tools.
//
// Start the server:
//
//	infera serve --config infera.yaml
//
// Configuration can also come from environment variables (OPENAI_TOKEN,
// CLASSIFICATION_SERVICE, TABLE_NAME, BATCH_TIMEOUT_SECONDS, ...); a .env
// file in the working directory is loaded automatically.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/infera-ai/infera/internal/classify"
	"github.com/infera-ai/infera/internal/config"
	"github.com/infera-ai/infera/internal/gateway"
	"github.com/infera-ai/infera/internal/observability"
	"github.com/infera-ai/infera/internal/orchestrator"
	"github.com/infera-ai/infera/internal/record"
	"github.com/infera-ai/infera/internal/slackapi"
	"github.com/infera-ai/infera/internal/tenant"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "infera",
		Short: "Infera - Slack decision documentation gateway",
		Long: `Infera turns Slack conversations into documentation.

It receives workspace messages via webhook, classifies each one, coalesces
bursts per channel, and hands the batch to an LLM agent that creates or
updates Notion pages through MCP tools.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(buildServeCmd())
	return rootCmd
}

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	// Secrets commonly live in a local .env during development.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	metrics := observability.NewMetrics()

	store, err := tenant.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open tenant store: %w", err)
	}
	defer store.Close()

	var records record.Store
	if dynamo, err := record.NewDynamoStore(ctx, cfg.Records.TableName, cfg.Records.Region, logger); err == nil {
		records = dynamo
	} else {
		// The sink is best-effort by contract; without AWS credentials the
		// pipeline still runs and keeps records in memory.
		logger.Warn(ctx, "analysis log sink unavailable, using in-memory store", "error", err)
		records = record.NewMemoryStore()
	}

	server := gateway.New(gateway.Deps{
		Config:     *cfg,
		Logger:     logger,
		Metrics:    metrics,
		Creds:      store,
		Assocs:     store,
		Records:    records,
		Classifier: classify.NewClient(cfg.Classify.ServiceURL),
		Slack:      slackapi.NewClient(),
		Factory:    orchestrator.NewFactory(*cfg, logger, metrics),
	})

	if err := server.Start(ctx); err != nil {
		return err
	}

	logger.Info(ctx, "infera started",
		"version", version,
		"addr", cfg.Server.Addr,
		"batch_window_seconds", cfg.Batch.WindowSeconds,
		"classifier_enabled", cfg.Classify.ServiceURL != "",
	)

	// Block until shutdown is requested, then drain.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info(ctx, "shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	server.Stop(context.Background())
	logger.Info(ctx, "shutdown complete")
	return nil
}
