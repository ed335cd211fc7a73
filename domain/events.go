package domain

import "encoding/json"

// EventType represents the type of a run trace event.
type EventType string

const (
	EventTypeRunStarted         EventType = "run_started"
	EventTypeRunPolled          EventType = "run_polled"
	EventTypeApprovalsSubmitted EventType = "approvals_submitted"
	EventTypeRunCancelled       EventType = "run_cancelled"
	EventTypeRunCompleted       EventType = "run_completed"
	EventTypeRunFailed          EventType = "run_failed"
	EventTypeAgentDeleted       EventType = "agent_deleted"
)

// Event is a trace event recorded while a run is driven.
type Event struct {
	EventID string          `json:"event_id"`
	RunID   string          `json:"run_id"`
	Ts      int64           `json:"ts"` // Unix milliseconds
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RunStartedPayload is the payload for run_started.
type RunStartedPayload struct {
	AgentID  string `json:"agent_id"`
	ThreadID string `json:"thread_id"`
	Question string `json:"question"`
}

// RunPolledPayload is the payload for run_polled.
type RunPolledPayload struct {
	Status RunState `json:"status"`
}

// ApprovalsSubmittedPayload is the payload for approvals_submitted.
type ApprovalsSubmittedPayload struct {
	Count int `json:"count"`
}

// RunCancelledPayload is the payload for run_cancelled.
type RunCancelledPayload struct {
	Reason string `json:"reason"`
}

// RunFailedPayload is the payload for run_failed.
type RunFailedPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
