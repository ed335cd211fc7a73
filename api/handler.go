// Package api provides the HTTP handlers for the gateway.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/wenqic/agentgate/config"
	"github.com/wenqic/agentgate/domain"
	"github.com/wenqic/agentgate/hub"
	"github.com/wenqic/agentgate/search"
	"github.com/wenqic/agentgate/store"
)

// Runner executes one agent run to completion.
type Runner interface {
	Execute(ctx context.Context, req domain.RunRequest) (*domain.RunOutcome, error)
}

// Searcher retrieves passages for the retrieval-augmented endpoints.
type Searcher interface {
	Query(ctx context.Context, query string, mode search.Mode, top int) ([]search.Document, error)
}

// Handler handles HTTP requests.
type Handler struct {
	runner   Runner
	searcher Searcher
	store    store.Store
	hub      *hub.Hub
	cfg      *config.Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new handler.
func NewHandler(runner Runner, searcher Searcher, st store.Store, h *hub.Hub, cfg *config.Config, logger *slog.Logger) *Handler {
	return &Handler{
		runner:   runner,
		searcher: searcher,
		store:    st,
		hub:      h,
		cfg:      cfg,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Agent relay
	e.GET("/api/agent/ask", h.Ask)
	e.POST("/api/agent/ask", h.Ask)
	e.GET("/api/agent/ask-semantic", h.AskSemantic)
	e.POST("/api/agent/ask-semantic", h.AskSemantic)
	e.GET("/api/agent/ask-vector", h.AskVector)
	e.POST("/api/agent/ask-vector", h.AskVector)

	// Tool declarations
	e.GET("/api/tools", h.ListTools)

	// Audit reads
	e.GET("/v1/runs", h.ListRuns)
	e.GET("/v1/runs/:run_id", h.GetRun)
	e.GET("/v1/runs/:run_id/events", h.GetRunEvents)
	e.GET("/v1/runs/:run_id/watch", h.WatchRun)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
