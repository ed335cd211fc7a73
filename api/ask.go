package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wenqic/agentgate/domain"
	"github.com/wenqic/agentgate/search"
)

// Ask relays a question straight to the agent service.
func (h *Handler) Ask(c echo.Context) error {
	question := extractQuestion(c)
	if question == "" {
		return c.JSON(http.StatusBadRequest, domain.ErrorResponse{
			Error: "question is required (query parameter or JSON body)",
		})
	}
	if missing := h.cfg.Missing(); len(missing) > 0 {
		return c.JSON(http.StatusInternalServerError, domain.ErrorResponse{
			Error:   "missing required configuration",
			Missing: missing,
		})
	}
	return h.run(c, question, nil)
}

// AskSemantic retrieves passages with a semantic query before asking the
// agent.
func (h *Handler) AskSemantic(c echo.Context) error {
	return h.askWithSearch(c, search.ModeSemantic)
}

// AskVector retrieves passages with a vector query before asking the agent.
func (h *Handler) AskVector(c echo.Context) error {
	return h.askWithSearch(c, search.ModeVector)
}

func (h *Handler) askWithSearch(c echo.Context, mode search.Mode) error {
	question := extractQuestion(c)
	if question == "" {
		return c.JSON(http.StatusBadRequest, domain.ErrorResponse{
			Error: "question is required (query parameter or JSON body)",
		})
	}
	if missing := h.cfg.MissingSearch(); len(missing) > 0 {
		return c.JSON(http.StatusInternalServerError, domain.ErrorResponse{
			Error:   "missing required configuration",
			Missing: missing,
		})
	}

	docs, err := h.searcher.Query(c.Request().Context(), question, mode, 3)
	if err != nil {
		h.logger.Error("search request failed", "mode", mode, "error", err)
		return c.JSON(http.StatusBadGateway, domain.ErrorResponse{
			Error: "search service request failed: " + err.Error(),
		})
	}

	sources := make([]domain.SearchSource, 0, len(docs))
	for _, d := range docs {
		sources = append(sources, domain.SearchSource{ID: d.ID, Score: d.Score})
	}
	return h.run(c, search.BuildPrompt(question, docs), sources)
}

// extractQuestion reads the question from the query string, falling back
// to the JSON body on POST.
func extractQuestion(c echo.Context) string {
	question := c.QueryParam("question")
	if question == "" && c.Request().Method == http.MethodPost {
		var req domain.AskRequest
		if err := c.Bind(&req); err == nil {
			question = req.Question
		}
	}
	return question
}

func (h *Handler) run(c echo.Context, question string, sources []domain.SearchSource) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.cfg.RunTimeout)
	defer cancel()

	req := domain.RunRequest{
		Question:        question,
		ToolServerURL:   h.cfg.ToolServerURL,
		ToolServerLabel: h.cfg.ToolServerLabel,
		AuthHeaderValue: h.cfg.ToolAuthKey,
	}

	outcome, err := h.runner.Execute(ctx, req)
	if err != nil {
		h.logger.Error("agent run failed", "error", err)
		return c.JSON(http.StatusBadGateway, domain.ErrorResponse{
			Error: "agent service request failed: " + err.Error(),
		})
	}

	h.recordOutcome(outcome)

	return c.JSON(http.StatusOK, domain.AskResponse{
		Answer:       outcome.AnswerText,
		RunStatus:    outcome.FinalStatus,
		RunID:        outcome.RunID,
		Conversation: outcome.Conversation,
		RunError:     outcome.ErrorDetail,
		Sources:      sources,
	})
}

// recordOutcome persists the terminal state and transcript. Audit failures
// are logged, never surfaced.
func (h *Handler) recordOutcome(outcome *domain.RunOutcome) {
	if h.store == nil || outcome.RunID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errData []byte
	if outcome.ErrorDetail != nil {
		errData, _ = json.Marshal(outcome.ErrorDetail)
	}
	if err := h.store.UpdateRunCompleted(ctx, outcome.RunID, outcome.FinalStatus, outcome.AnswerText, errData); err != nil {
		h.logger.Error("failed to update run record", "run_id", outcome.RunID, "error", err)
	}

	now := time.Now()
	for i, entry := range outcome.Conversation {
		msg := &domain.Message{
			MessageID: "msg_" + uuid.New().String()[:8],
			RunID:     outcome.RunID,
			Seq:       i,
			Role:      entry.Role,
			Content:   entry.Text,
			CreatedAt: now,
		}
		if err := h.store.CreateMessage(ctx, msg); err != nil {
			h.logger.Error("failed to save message", "run_id", outcome.RunID, "error", err)
		}
	}
}
