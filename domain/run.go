// Package domain defines the core domain models for the gateway.
package domain

import (
	"encoding/json"
	"time"
)

// RunState is the gateway's classification of a remote run status.
// Transitions are driven only by polling; the gateway never computes a
// transition itself.
type RunState string

const (
	RunStateQueued         RunState = "QUEUED"
	RunStateInProgress     RunState = "IN_PROGRESS"
	RunStateRequiresAction RunState = "REQUIRES_ACTION"
	RunStateCompleted      RunState = "COMPLETED"
	RunStateFailed         RunState = "FAILED"
	RunStateCancelled      RunState = "CANCELLED"
	RunStateExpired        RunState = "EXPIRED"
	// RunStateUnknown covers any status string the remote service reports
	// that the gateway does not recognize. Treated as terminal.
	RunStateUnknown RunState = "UNKNOWN"
)

// ParseRunState maps a remote status string to a RunState. Unrecognized
// statuses map to RunStateUnknown rather than failing.
func ParseRunState(remote string) RunState {
	switch remote {
	case "queued":
		return RunStateQueued
	case "in_progress":
		return RunStateInProgress
	case "requires_action":
		return RunStateRequiresAction
	case "completed":
		return RunStateCompleted
	case "failed":
		return RunStateFailed
	case "cancelled", "cancelling":
		return RunStateCancelled
	case "expired":
		return RunStateExpired
	default:
		return RunStateUnknown
	}
}

// Terminal reports whether the state ends the polling loop.
func (s RunState) Terminal() bool {
	switch s {
	case RunStateQueued, RunStateInProgress, RunStateRequiresAction:
		return false
	}
	return true
}

// RunRequest is the immutable input for one coordinator execution.
type RunRequest struct {
	Question        string `json:"question"`
	ToolServerURL   string `json:"tool_server_url"`
	ToolServerLabel string `json:"tool_server_label"`
	AuthHeaderValue string `json:"-"`
}

// RunHandle holds the remote identifiers owned by one execution. The agent
// behind AgentID must be deleted on every exit path.
type RunHandle struct {
	AgentID  string `json:"agent_id"`
	ThreadID string `json:"thread_id"`
	RunID    string `json:"run_id"`
}

// ConversationEntry is one projected thread message, ordered by creation
// time ascending.
type ConversationEntry struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// RunError is the remote-reported error attached to a failed run.
type RunError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// RunOutcome is the normalized result of driving one run to a terminal
// state. AnswerText is the text of the last assistant entry, or empty.
type RunOutcome struct {
	AnswerText   string              `json:"answer"`
	FinalStatus  RunState            `json:"run_status"`
	RunID        string              `json:"run_id"`
	ErrorDetail  *RunError           `json:"run_error,omitempty"`
	Conversation []ConversationEntry `json:"conversation"`
}

// RunRecord is the audit row persisted for one gateway invocation.
type RunRecord struct {
	RunID     string          `json:"run_id"`
	AgentID   string          `json:"agent_id"`
	ThreadID  string          `json:"thread_id"`
	Status    RunState        `json:"status"`
	Question  string          `json:"question"`
	Answer    string          `json:"answer,omitempty"`
	Error     json.RawMessage `json:"error,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
}

// Message is one persisted transcript entry. Seq preserves conversation
// order within a run.
type Message struct {
	MessageID string    `json:"message_id"`
	RunID     string    `json:"run_id"`
	Seq       int       `json:"seq"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
