package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wenqic/agentgate/domain"
	"github.com/wenqic/agentgate/tests/helpers"
)

func TestRunRecordLifecycle(t *testing.T) {
	s := helpers.NewTestSQLiteStore(t)
	ctx := context.Background()

	err := s.CreateRun(ctx, &domain.RunRecord{
		RunID:     "run_1",
		AgentID:   "agent_1",
		ThreadID:  "thread_1",
		Status:    domain.RunStateQueued,
		Question:  "what is the tagline?",
		StartedAt: time.Now(),
	})
	assert.NoError(t, err)

	errData, _ := json.Marshal(domain.RunError{Code: "server_error", Message: "boom"})
	err = s.UpdateRunCompleted(ctx, "run_1", domain.RunStateFailed, "", errData)
	assert.NoError(t, err)

	run, err := s.GetRun(ctx, "run_1")
	assert.NoError(t, err)
	if assert.NotNil(t, run) {
		assert.Equal(t, domain.RunStateFailed, run.Status)
		assert.NotNil(t, run.EndedAt)
		assert.JSONEq(t, string(errData), string(run.Error))
	}
}

func TestGetRunMissingReturnsNil(t *testing.T) {
	s := helpers.NewTestSQLiteStore(t)

	run, err := s.GetRun(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, run)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := helpers.NewTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"run_old", "run_new"} {
		err := s.CreateRun(ctx, &domain.RunRecord{
			RunID:     id,
			AgentID:   "a",
			ThreadID:  "t",
			Status:    domain.RunStateCompleted,
			Question:  "q",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		})
		assert.NoError(t, err)
	}

	runs, err := s.ListRuns(ctx, 10)
	assert.NoError(t, err)
	if assert.Len(t, runs, 2) {
		assert.Equal(t, "run_new", runs[0].RunID)
	}
}

func TestMessagesOrderedBySeq(t *testing.T) {
	s := helpers.NewTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now()
	for i, content := range []string{"first", "second", "third"} {
		err := s.CreateMessage(ctx, &domain.Message{
			MessageID: "msg_" + content,
			RunID:     "run_1",
			Seq:       i,
			Role:      "user",
			Content:   content,
			CreatedAt: now,
		})
		assert.NoError(t, err)
	}

	messages, err := s.GetMessages(ctx, "run_1")
	assert.NoError(t, err)
	if assert.Len(t, messages, 3) {
		assert.Equal(t, "first", messages[0].Content)
		assert.Equal(t, "third", messages[2].Content)
	}
}

func TestEventsFilteredByTypeAndTs(t *testing.T) {
	s := helpers.NewTestSQLiteStore(t)
	ctx := context.Background()

	events := []domain.Event{
		{EventID: "evt_1", RunID: "run_1", Ts: 100, Type: domain.EventTypeRunStarted},
		{EventID: "evt_2", RunID: "run_1", Ts: 200, Type: domain.EventTypeRunPolled, Payload: []byte(`{"status":"IN_PROGRESS"}`)},
		{EventID: "evt_3", RunID: "run_1", Ts: 300, Type: domain.EventTypeRunCompleted},
	}
	for i := range events {
		assert.NoError(t, s.CreateEvent(ctx, &events[i]))
	}

	all, err := s.GetEvents(ctx, "run_1", 0, nil, 10)
	assert.NoError(t, err)
	assert.Len(t, all, 3)

	late, err := s.GetEvents(ctx, "run_1", 150, nil, 10)
	assert.NoError(t, err)
	assert.Len(t, late, 2)

	polled, err := s.GetEvents(ctx, "run_1", 0, []string{string(domain.EventTypeRunPolled)}, 10)
	assert.NoError(t, err)
	if assert.Len(t, polled, 1) {
		assert.Equal(t, "evt_2", polled[0].EventID)
		assert.JSONEq(t, `{"status":"IN_PROGRESS"}`, string(polled[0].Payload))
	}
}
