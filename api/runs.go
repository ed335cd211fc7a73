package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/wenqic/agentgate/domain"
)

// ListRuns returns recent run records.
func (h *Handler) ListRuns(c echo.Context) error {
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := h.store.ListRuns(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		return c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Error: "failed to list runs"})
	}
	if runs == nil {
		runs = []domain.RunRecord{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"runs": runs})
}

// GetRun returns one run record with its transcript.
func (h *Handler) GetRun(c echo.Context) error {
	runID := c.Param("run_id")
	ctx := c.Request().Context()

	run, err := h.store.GetRun(ctx, runID)
	if err != nil {
		h.logger.Error("failed to get run", "run_id", runID, "error", err)
		return c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Error: "failed to get run"})
	}
	if run == nil {
		return c.JSON(http.StatusNotFound, domain.ErrorResponse{Error: "run not found"})
	}

	messages, err := h.store.GetMessages(ctx, runID)
	if err != nil {
		h.logger.Error("failed to get messages", "run_id", runID, "error", err)
		return c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Error: "failed to get messages"})
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"run":      run,
		"messages": messages,
	})
}

// GetRunEvents returns trace events for a run.
func (h *Handler) GetRunEvents(c echo.Context) error {
	runID := c.Param("run_id")

	afterTs := int64(0)
	if v := c.QueryParam("after_ts"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			afterTs = n
		}
	}

	events, err := h.store.GetEvents(c.Request().Context(), runID, afterTs, nil, 500)
	if err != nil {
		h.logger.Error("failed to get events", "run_id", runID, "error", err)
		return c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Error: "failed to get events"})
	}
	if events == nil {
		events = []domain.Event{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"events": events})
}

const (
	watchWriteTimeout = 10 * time.Second
	watchPingInterval = 30 * time.Second
)

// WatchRun streams live trace events for a run over a WebSocket.
func (h *Handler) WatchRun(c echo.Context) error {
	runID := c.Param("run_id")

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket", "error", err)
		return err
	}
	defer ws.Close()

	sub := h.hub.Subscribe(runID)
	defer h.hub.Unsubscribe(sub)

	// Reader loop only detects the client going away.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(watchPingInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-sub.C:
			if !ok {
				return nil
			}
			ws.SetWriteDeadline(time.Now().Add(watchWriteTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return nil
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(watchWriteTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-clientGone:
			return nil
		}
	}
}
