package coordinator_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wenqic/agentgate/agentsvc"
	"github.com/wenqic/agentgate/coordinator"
	"github.com/wenqic/agentgate/domain"
	"github.com/wenqic/agentgate/policy"
)

// fakeService scripts the remote agent service: successive GetRun calls pop
// snapshots from runQueue.
type fakeService struct {
	mu sync.Mutex

	runQueue []*agentsvc.Run
	messages []agentsvc.ThreadMessage

	createAgentErr  error
	createThreadErr error
	getRunErr       error
	submitErr       error
	listErr         error
	deleteErr       error

	getRunCalls int
	cancels     int
	deleted     []string
	submissions [][]agentsvc.ToolApproval
	runRequests []*agentsvc.ToolResources
}

func (f *fakeService) CreateAgent(ctx context.Context, p agentsvc.CreateAgentParams) (string, error) {
	if f.createAgentErr != nil {
		return "", f.createAgentErr
	}
	return "agent_1", nil
}

func (f *fakeService) CreateThread(ctx context.Context) (string, error) {
	if f.createThreadErr != nil {
		return "", f.createThreadErr
	}
	return "thread_1", nil
}

func (f *fakeService) PostMessage(ctx context.Context, threadID, role, content string) (string, error) {
	return "msg_1", nil
}

func (f *fakeService) CreateRun(ctx context.Context, threadID, agentID string, resources *agentsvc.ToolResources) (*agentsvc.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runRequests = append(f.runRequests, resources)
	return &agentsvc.Run{ID: "run_1", ThreadID: threadID, Status: "queued"}, nil
}

func (f *fakeService) GetRun(ctx context.Context, threadID, runID string) (*agentsvc.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getRunCalls++
	if f.getRunErr != nil {
		return nil, f.getRunErr
	}
	if len(f.runQueue) == 0 {
		return &agentsvc.Run{ID: runID, Status: "completed"}, nil
	}
	run := f.runQueue[0]
	f.runQueue = f.runQueue[1:]
	run.ID = runID
	return run, nil
}

func (f *fakeService) SubmitToolApprovals(ctx context.Context, threadID, runID string, approvals []agentsvc.ToolApproval) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submissions = append(f.submissions, approvals)
	return nil
}

func (f *fakeService) CancelRun(ctx context.Context, threadID, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	return nil
}

func (f *fakeService) ListMessages(ctx context.Context, threadID string) ([]agentsvc.ThreadMessage, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.messages, nil
}

func (f *fakeService) DeleteAgent(ctx context.Context, agentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, agentID)
	return f.deleteErr
}

func instantSleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func newCoordinator(svc agentsvc.Service, opts ...coordinator.Option) *coordinator.Coordinator {
	base := []coordinator.Option{
		coordinator.WithSleeper(instantSleep),
		coordinator.WithLogger(slog.New(slog.DiscardHandler)),
	}
	return coordinator.New(svc, "gpt-test", append(base, opts...)...)
}

func testRequest() domain.RunRequest {
	return domain.RunRequest{
		Question:        "what is the tagline for contoso?",
		ToolServerURL:   "https://tools.example.com/mcp",
		ToolServerLabel: "product-tools",
		AuthHeaderValue: "secret-key",
	}
}

func TestExecuteDrivesRunToCompletion(t *testing.T) {
	svc := &fakeService{
		runQueue: []*agentsvc.Run{
			{Status: "queued"},
			{Status: "in_progress"},
			{Status: "completed"},
		},
		messages: []agentsvc.ThreadMessage{
			{Role: "user", Text: "what is the tagline for contoso?"},
			{Role: "assistant", Text: "Contoso: beyond expectations."},
		},
	}

	outcome, err := newCoordinator(svc).Execute(context.Background(), testRequest())
	assert.NoError(t, err)
	assert.Equal(t, 3, svc.getRunCalls)
	assert.Equal(t, domain.RunStateCompleted, outcome.FinalStatus)
	assert.Equal(t, "run_1", outcome.RunID)
	assert.Equal(t, "Contoso: beyond expectations.", outcome.AnswerText)
	assert.Equal(t, []string{"agent_1"}, svc.deleted)
}

func TestAnswerIsLastAssistantMessage(t *testing.T) {
	svc := &fakeService{
		runQueue: []*agentsvc.Run{{Status: "completed"}},
		messages: []agentsvc.ThreadMessage{
			{Role: "user", Text: "hi"},
			{Role: "assistant", Text: "first"},
			{Role: "user", Text: "more"},
			{Role: "assistant", Text: "second"},
		},
	}

	outcome, err := newCoordinator(svc).Execute(context.Background(), testRequest())
	assert.NoError(t, err)
	assert.Equal(t, "second", outcome.AnswerText)
	assert.Equal(t, []domain.ConversationEntry{
		{Role: "user", Text: "hi"},
		{Role: "assistant", Text: "first"},
		{Role: "user", Text: "more"},
		{Role: "assistant", Text: "second"},
	}, outcome.Conversation)
}

func TestApprovalBatching(t *testing.T) {
	svc := &fakeService{
		runQueue: []*agentsvc.Run{
			{
				Status: "requires_action",
				RequiredAction: &agentsvc.RequiredAction{
					Type: agentsvc.RequiredActionSubmitApprovals,
					ToolCalls: []agentsvc.RequiredToolCall{
						{ID: "call_1", Type: "mcp", Name: "getTagLine"},
						{ID: "call_2", Type: "mcp", Name: "getTagLine"},
					},
				},
			},
			{Status: "completed"},
		},
	}

	outcome, err := newCoordinator(svc).Execute(context.Background(), testRequest())
	assert.NoError(t, err)
	assert.Equal(t, domain.RunStateCompleted, outcome.FinalStatus)

	assert.Len(t, svc.submissions, 1)
	batch := svc.submissions[0]
	assert.Len(t, batch, 2)
	for _, approval := range batch {
		assert.True(t, approval.Approve)
		assert.Equal(t, "secret-key", approval.Headers[coordinator.AuthHeaderName])
	}
	assert.Equal(t, []string{"agent_1"}, svc.deleted)
}

func TestZeroPendingCallsCancelsRun(t *testing.T) {
	svc := &fakeService{
		runQueue: []*agentsvc.Run{
			{
				Status: "requires_action",
				RequiredAction: &agentsvc.RequiredAction{
					Type: agentsvc.RequiredActionSubmitApprovals,
				},
			},
			{Status: "completed"}, // must never be reached
		},
	}

	outcome, err := newCoordinator(svc).Execute(context.Background(), testRequest())
	assert.NoError(t, err)
	assert.Equal(t, 1, svc.cancels)
	assert.Equal(t, 1, svc.getRunCalls)
	assert.Equal(t, domain.RunStateCancelled, outcome.FinalStatus)
	assert.Equal(t, []string{"agent_1"}, svc.deleted)
}

func TestReleaseOnDriveError(t *testing.T) {
	svc := &fakeService{getRunErr: errors.New("boom")}

	outcome, err := newCoordinator(svc).Execute(context.Background(), testRequest())
	assert.Error(t, err)
	assert.Nil(t, outcome)
	assert.Equal(t, []string{"agent_1"}, svc.deleted)
}

func TestReleaseOnTranscriptError(t *testing.T) {
	svc := &fakeService{
		runQueue: []*agentsvc.Run{{Status: "completed"}},
		listErr:  errors.New("transcript unavailable"),
	}

	_, err := newCoordinator(svc).Execute(context.Background(), testRequest())
	assert.Error(t, err)
	assert.ErrorContains(t, err, "failed to list messages")
	assert.Equal(t, []string{"agent_1"}, svc.deleted)
}

func TestReleaseFailureIsSuppressedNotPropagated(t *testing.T) {
	svc := &fakeService{
		getRunErr: errors.New("drive exploded"),
		deleteErr: errors.New("delete exploded"),
	}

	_, err := newCoordinator(svc).Execute(context.Background(), testRequest())
	assert.Error(t, err)
	assert.ErrorContains(t, err, "drive exploded")

	var fault *coordinator.Fault
	assert.ErrorAs(t, err, &fault)
	assert.ErrorContains(t, fault.Primary, "drive exploded")
	assert.Len(t, fault.Suppressed, 1)
	assert.ErrorContains(t, fault.Suppressed[0], "delete exploded")
}

func TestCancelledContextStillReleases(t *testing.T) {
	svc := &fakeService{
		runQueue: []*agentsvc.Run{{Status: "in_progress"}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newCoordinator(svc).Execute(ctx, testRequest())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"agent_1"}, svc.deleted)
}

func TestUnknownStatusIsTerminal(t *testing.T) {
	svc := &fakeService{
		runQueue: []*agentsvc.Run{
			{Status: "deferred_for_maintenance"},
			{Status: "completed"}, // must never be reached
		},
	}

	outcome, err := newCoordinator(svc).Execute(context.Background(), testRequest())
	assert.NoError(t, err)
	assert.Equal(t, 1, svc.getRunCalls)
	assert.Equal(t, domain.RunStateUnknown, outcome.FinalStatus)
}

func TestFailedRunIsNotAnError(t *testing.T) {
	svc := &fakeService{
		runQueue: []*agentsvc.Run{
			{
				Status:    "failed",
				LastError: &agentsvc.RunLastError{Code: "rate_limit_exceeded", Message: "try later"},
			},
		},
	}

	outcome, err := newCoordinator(svc).Execute(context.Background(), testRequest())
	assert.NoError(t, err)
	assert.Equal(t, domain.RunStateFailed, outcome.FinalStatus)
	if assert.NotNil(t, outcome.ErrorDetail) {
		assert.Equal(t, "rate_limit_exceeded", outcome.ErrorDetail.Code)
		assert.Equal(t, "try later", outcome.ErrorDetail.Message)
	}
	assert.Equal(t, []string{"agent_1"}, svc.deleted)
}

func TestRunRequestCarriesAuthHeader(t *testing.T) {
	svc := &fakeService{runQueue: []*agentsvc.Run{{Status: "completed"}}}

	_, err := newCoordinator(svc).Execute(context.Background(), testRequest())
	assert.NoError(t, err)

	if assert.Len(t, svc.runRequests, 1) && assert.NotNil(t, svc.runRequests[0]) {
		mcp := svc.runRequests[0].MCP
		if assert.Len(t, mcp, 1) {
			assert.Equal(t, "product-tools", mcp[0].ServerLabel)
			assert.Equal(t, "secret-key", mcp[0].Headers[coordinator.AuthHeaderName])
		}
	}
}

// decisionPolicy returns a fixed decision per tool-call type.
type decisionPolicy struct {
	decisions map[string]policy.Decision
	err       error
}

func (p *decisionPolicy) Decide(ctx context.Context, input policy.ToolCallInput) (policy.Decision, error) {
	if p.err != nil {
		return "", p.err
	}
	return p.decisions[input.Type], nil
}

func TestPolicyCancelStopsRun(t *testing.T) {
	svc := &fakeService{
		runQueue: []*agentsvc.Run{
			{
				Status: "requires_action",
				RequiredAction: &agentsvc.RequiredAction{
					Type:      agentsvc.RequiredActionSubmitApprovals,
					ToolCalls: []agentsvc.RequiredToolCall{{ID: "call_1", Type: "shell"}},
				},
			},
		},
	}
	p := &decisionPolicy{decisions: map[string]policy.Decision{"shell": policy.DecisionCancel}}

	outcome, err := newCoordinator(svc, coordinator.WithPolicy(p)).Execute(context.Background(), testRequest())
	assert.NoError(t, err)
	assert.Equal(t, 1, svc.cancels)
	assert.Empty(t, svc.submissions)
	assert.Equal(t, domain.RunStateCancelled, outcome.FinalStatus)
}

func TestPolicyErrorSkipsCallNotBatch(t *testing.T) {
	calls := 0
	p := policyFunc(func(ctx context.Context, input policy.ToolCallInput) (policy.Decision, error) {
		calls++
		if input.ToolName == "broken" {
			return "", fmt.Errorf("no decision for %s", input.ToolName)
		}
		return policy.DecisionApprove, nil
	})

	svc := &fakeService{
		runQueue: []*agentsvc.Run{
			{
				Status: "requires_action",
				RequiredAction: &agentsvc.RequiredAction{
					Type: agentsvc.RequiredActionSubmitApprovals,
					ToolCalls: []agentsvc.RequiredToolCall{
						{ID: "call_1", Type: "mcp", Name: "broken"},
						{ID: "call_2", Type: "mcp", Name: "getTagLine"},
					},
				},
			},
			{Status: "completed"},
		},
	}

	outcome, err := newCoordinator(svc, coordinator.WithPolicy(p)).Execute(context.Background(), testRequest())
	assert.NoError(t, err)
	assert.Equal(t, domain.RunStateCompleted, outcome.FinalStatus)
	assert.Equal(t, 2, calls)
	if assert.Len(t, svc.submissions, 1) {
		assert.Len(t, svc.submissions[0], 1)
		assert.Equal(t, "call_2", svc.submissions[0][0].ToolCallID)
	}
}

type policyFunc func(ctx context.Context, input policy.ToolCallInput) (policy.Decision, error)

func (f policyFunc) Decide(ctx context.Context, input policy.ToolCallInput) (policy.Decision, error) {
	return f(ctx, input)
}

func TestUnsupportedRequiredActionKindKeepsPolling(t *testing.T) {
	svc := &fakeService{
		runQueue: []*agentsvc.Run{
			{
				Status:         "requires_action",
				RequiredAction: &agentsvc.RequiredAction{Type: "submit_tool_outputs"},
			},
			{Status: "completed"},
		},
	}

	outcome, err := newCoordinator(svc).Execute(context.Background(), testRequest())
	assert.NoError(t, err)
	assert.Equal(t, domain.RunStateCompleted, outcome.FinalStatus)
	assert.Zero(t, svc.cancels)
	assert.Empty(t, svc.submissions)
	assert.Equal(t, 2, svc.getRunCalls)
}
