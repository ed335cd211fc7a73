package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wenqic/agentgate/coordinator"
	"github.com/wenqic/agentgate/domain"
	"github.com/wenqic/agentgate/hub"
	"github.com/wenqic/agentgate/store"
)

// Recorder is the coordinator's event sink: it persists trace events and
// fans them out to watch subscribers. All failures are logged only.
type Recorder struct {
	store  store.Store
	hub    *hub.Hub
	logger *slog.Logger
}

var _ coordinator.EventSink = (*Recorder)(nil)

// NewRecorder creates a recorder backed by the given store and hub.
func NewRecorder(st store.Store, h *hub.Hub, logger *slog.Logger) *Recorder {
	return &Recorder{store: st, hub: h, logger: logger}
}

// Record persists one trace event and publishes it to watchers. A
// run_started event additionally opens the run's audit record.
func (r *Recorder) Record(runID string, eventType domain.EventType, payload interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var payloadBytes []byte
	if payload != nil {
		var err error
		payloadBytes, err = json.Marshal(payload)
		if err != nil {
			r.logger.Error("failed to marshal event payload", "run_id", runID, "type", eventType, "error", err)
			payloadBytes = nil
		}
	}

	event := &domain.Event{
		EventID: "evt_" + uuid.New().String()[:8],
		RunID:   runID,
		Ts:      time.Now().UnixMilli(),
		Type:    eventType,
		Payload: payloadBytes,
	}

	if eventType == domain.EventTypeRunStarted {
		r.openRunRecord(ctx, runID, payloadBytes)
	}

	if r.store != nil {
		if err := r.store.CreateEvent(ctx, event); err != nil {
			r.logger.Error("failed to record event", "run_id", runID, "type", eventType, "error", err)
		}
	}

	if r.hub != nil {
		if data, err := json.Marshal(event); err == nil {
			r.hub.Publish(runID, data)
		}
	}
}

func (r *Recorder) openRunRecord(ctx context.Context, runID string, payload []byte) {
	if r.store == nil {
		return
	}
	var started domain.RunStartedPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &started); err != nil {
			r.logger.Error("failed to decode run_started payload", "run_id", runID, "error", err)
		}
	}
	record := &domain.RunRecord{
		RunID:     runID,
		AgentID:   started.AgentID,
		ThreadID:  started.ThreadID,
		Status:    domain.RunStateQueued,
		Question:  started.Question,
		StartedAt: time.Now(),
	}
	if err := r.store.CreateRun(ctx, record); err != nil {
		r.logger.Error("failed to create run record", "run_id", runID, "error", err)
	}
}
