// Package store defines the audit store interface and implementations.
// The store is observational: the coordinator never reads it.
package store

import (
	"context"

	"github.com/wenqic/agentgate/domain"
)

// Store defines the interface for audit persistence.
type Store interface {
	// Run records
	CreateRun(ctx context.Context, run *domain.RunRecord) error
	UpdateRunCompleted(ctx context.Context, runID string, status domain.RunState, answer string, errData []byte) error
	GetRun(ctx context.Context, runID string) (*domain.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)

	// Transcript
	CreateMessage(ctx context.Context, message *domain.Message) error
	GetMessages(ctx context.Context, runID string) ([]domain.Message, error)

	// Trace events
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetEvents(ctx context.Context, runID string, afterTs int64, types []string, limit int) ([]domain.Event, error)

	// Lifecycle
	Close() error
}
