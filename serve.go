package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/wenqic/agentgate/agentsvc"
	"github.com/wenqic/agentgate/api"
	"github.com/wenqic/agentgate/config"
	"github.com/wenqic/agentgate/coordinator"
	"github.com/wenqic/agentgate/hub"
	"github.com/wenqic/agentgate/policy"
	"github.com/wenqic/agentgate/search"
	"github.com/wenqic/agentgate/store"
)

func newServeCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if configFile != "" {
				if err := cfg.ApplyFile(configFile); err != nil {
					return err
				}
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "YAML config file overlaying the environment")
	return cmd
}

func serve(cfg *config.Config) error {
	logger := newLogger(os.Stderr, cfg.LogLevel)

	logger.Info("starting agentgate",
		"port", cfg.HTTPPort,
		"database", cfg.DatabaseURL,
		"project_endpoint", cfg.ProjectEndpoint)

	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer db.Close()

	policyContent := policy.DefaultPolicy
	if cfg.PolicyPath != "" {
		data, err := os.ReadFile(cfg.PolicyPath)
		if err != nil {
			return fmt.Errorf("failed to read policy file: %w", err)
		}
		policyContent = string(data)
	}
	policyEngine, err := policy.NewEngine(context.Background(), policyContent)
	if err != nil {
		return fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	agentClient := agentsvc.NewClient(cfg.ProjectEndpoint, cfg.ProjectAPIKey, 60*time.Second)
	searchClient := search.NewClient(cfg.SearchEndpoint, cfg.SearchAPIKey, cfg.SearchIndex, 30*time.Second)

	eventHub := hub.New()
	defer eventHub.Close()

	recorder := api.NewRecorder(db, eventHub, logger)
	coord := coordinator.New(agentClient, cfg.ModelDeployment,
		coordinator.WithPollInterval(cfg.PollInterval),
		coordinator.WithPolicy(policyEngine),
		coordinator.WithEventSink(recorder),
		coordinator.WithLogger(logger),
	)

	h := api.NewHandler(coord, searchClient, db, eventHub, cfg, logger)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	h.RegisterRoutes(e)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("gateway started", "port", cfg.HTTPPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown gracefully", "error", err)
	}

	logger.Info("gateway stopped")
	return nil
}
