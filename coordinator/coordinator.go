// Package coordinator drives a single remote agent run from creation to a
// terminal state: polling, tool-call approval, bounded termination, and
// guaranteed teardown of the agent resource.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wenqic/agentgate/agentsvc"
	"github.com/wenqic/agentgate/domain"
	"github.com/wenqic/agentgate/policy"
)

// DefaultInstructions is the system prompt given to every provisioned agent.
const DefaultInstructions = "You are a helpful assistant. Use the connected tools to answer the user's question."

// AuthHeaderName is the header the agent service sends to the tool server
// so the tool server can authenticate inbound calls.
const AuthHeaderName = "x-functions-key"

// ApprovalPolicy decides what to do with one pending tool call.
type ApprovalPolicy interface {
	Decide(ctx context.Context, input policy.ToolCallInput) (policy.Decision, error)
}

// EventSink receives trace events while a run is driven. Implementations
// must be non-blocking; recording failures are the sink's problem.
type EventSink interface {
	Record(runID string, eventType domain.EventType, payload interface{})
}

// SleepFunc suspends until the duration elapses or ctx is done. Injected so
// tests can simulate immediate transitions.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Coordinator executes one RunRequest at a time against the remote agent
// service. Instances hold no per-run state and are safe for concurrent use;
// each Execute call owns its own run handle.
type Coordinator struct {
	svc          agentsvc.Service
	policy       ApprovalPolicy
	sink         EventSink
	sleep        SleepFunc
	interval     time.Duration
	model        string
	instructions string
	logger       *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPollInterval sets the delay between run status polls.
func WithPollInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.interval = d }
}

// WithSleeper replaces the poll-interval sleep.
func WithSleeper(sleep SleepFunc) Option {
	return func(c *Coordinator) { c.sleep = sleep }
}

// WithPolicy sets the approval policy.
func WithPolicy(p ApprovalPolicy) Option {
	return func(c *Coordinator) { c.policy = p }
}

// WithEventSink sets the trace event sink.
func WithEventSink(sink EventSink) Option {
	return func(c *Coordinator) { c.sink = sink }
}

// WithInstructions overrides the agent system instructions.
func WithInstructions(instructions string) Option {
	return func(c *Coordinator) { c.instructions = instructions }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// New creates a Coordinator for the given service and model deployment.
func New(svc agentsvc.Service, model string, opts ...Option) *Coordinator {
	c := &Coordinator{
		svc:          svc,
		model:        model,
		sleep:        sleepContext,
		interval:     time.Second,
		instructions: DefaultInstructions,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute provisions an agent, opens a conversation, drives the run to a
// terminal state, and collects the transcript. The agent resource is
// released on every path out, including cancellation and errors; a release
// failure never displaces the primary error.
func (c *Coordinator) Execute(ctx context.Context, req domain.RunRequest) (outcome *domain.RunOutcome, err error) {
	agentID, err := c.svc.CreateAgent(ctx, agentsvc.CreateAgentParams{
		Model:        c.model,
		Instructions: c.instructions,
		Tools: []agentsvc.MCPToolDefinition{{
			ServerLabel: req.ToolServerLabel,
			ServerURL:   req.ToolServerURL,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	var runID string
	defer func() {
		// The delete must run even when ctx is already cancelled.
		if relErr := c.svc.DeleteAgent(context.WithoutCancel(ctx), agentID); relErr != nil {
			c.logger.Error("failed to delete agent", "agent_id", agentID, "error", relErr)
			if err != nil {
				err = withSuppressed(err, relErr)
			}
		} else {
			c.record(runID, domain.EventTypeAgentDeleted, nil)
		}
	}()

	threadID, err := c.svc.CreateThread(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}

	if _, err = c.svc.PostMessage(ctx, threadID, "user", req.Question); err != nil {
		return nil, fmt.Errorf("failed to post message: %w", err)
	}

	resources := &agentsvc.ToolResources{
		MCP: []agentsvc.MCPResource{{
			ServerLabel:     req.ToolServerLabel,
			Headers:         map[string]string{AuthHeaderName: req.AuthHeaderValue},
			RequireApproval: "always",
		}},
	}
	run, err := c.svc.CreateRun(ctx, threadID, agentID, resources)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	runID = run.ID
	c.record(runID, domain.EventTypeRunStarted, domain.RunStartedPayload{
		AgentID:  agentID,
		ThreadID: threadID,
		Question: req.Question,
	})

	state, run, err := c.drive(ctx, threadID, run, req)
	if err != nil {
		return nil, err
	}

	messages, err := c.svc.ListMessages(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	conversation := make([]domain.ConversationEntry, 0, len(messages))
	answer := ""
	for _, m := range messages {
		conversation = append(conversation, domain.ConversationEntry{Role: m.Role, Text: m.Text})
		if m.Role == "assistant" {
			answer = m.Text
		}
	}

	outcome = &domain.RunOutcome{
		AnswerText:   answer,
		FinalStatus:  state,
		RunID:        runID,
		Conversation: conversation,
	}

	switch state {
	case domain.RunStateFailed:
		if run != nil && run.LastError != nil {
			outcome.ErrorDetail = &domain.RunError{Code: run.LastError.Code, Message: run.LastError.Message}
		} else {
			outcome.ErrorDetail = &domain.RunError{Message: "run failed without error detail"}
		}
		c.record(runID, domain.EventTypeRunFailed, domain.RunFailedPayload{
			Code:    outcome.ErrorDetail.Code,
			Message: outcome.ErrorDetail.Message,
		})
	default:
		c.record(runID, domain.EventTypeRunCompleted, domain.RunPolledPayload{Status: state})
	}

	return outcome, nil
}

// drive polls the run until it reaches a terminal state, answering
// requires_action along the way. It returns the final state and the last
// observed run snapshot.
func (c *Coordinator) drive(ctx context.Context, threadID string, run *agentsvc.Run, req domain.RunRequest) (domain.RunState, *agentsvc.Run, error) {
	state := domain.ParseRunState(run.Status)
	runID := run.ID

	for !state.Terminal() {
		if err := c.sleep(ctx, c.interval); err != nil {
			return state, run, fmt.Errorf("run polling interrupted: %w", err)
		}

		var err error
		run, err = c.svc.GetRun(ctx, threadID, runID)
		if err != nil {
			return state, run, fmt.Errorf("failed to get run: %w", err)
		}
		state = domain.ParseRunState(run.Status)
		c.record(runID, domain.EventTypeRunPolled, domain.RunPolledPayload{Status: state})

		if state != domain.RunStateRequiresAction {
			continue
		}
		action := run.RequiredAction
		if action == nil || action.Type != agentsvc.RequiredActionSubmitApprovals {
			// Unsupported required-action kind; the policy engine never
			// sees it and the run stays pending until the service or the
			// caller's deadline ends it.
			continue
		}

		cancelled, err := c.approve(ctx, threadID, runID, action, req)
		if err != nil {
			return state, run, err
		}
		if cancelled {
			state = domain.RunStateCancelled
			break
		}
	}

	return state, run, nil
}

// approve builds and submits the approval batch for a requires_action run.
// It reports true when the run was cancelled instead.
func (c *Coordinator) approve(ctx context.Context, threadID, runID string, action *agentsvc.RequiredAction, req domain.RunRequest) (bool, error) {
	if len(action.ToolCalls) == 0 {
		// A requires_action run with nothing to approve cannot make
		// progress; cancel it rather than polling it forever.
		c.logger.Warn("requires_action with no pending tool calls, cancelling run", "run_id", runID)
		if err := c.svc.CancelRun(ctx, threadID, runID); err != nil {
			return false, fmt.Errorf("failed to cancel run: %w", err)
		}
		c.record(runID, domain.EventTypeRunCancelled, domain.RunCancelledPayload{Reason: "no pending tool calls"})
		return true, nil
	}

	approvals := make([]agentsvc.ToolApproval, 0, len(action.ToolCalls))
	for _, call := range action.ToolCalls {
		decision, err := c.decide(ctx, call, req)
		if err != nil {
			// Best-effort per call: skip this one, keep the batch going.
			c.logger.Warn("failed to build approval, skipping tool call",
				"run_id", runID, "tool_call_id", call.ID, "error", err)
			continue
		}

		switch decision {
		case policy.DecisionApprove:
			approvals = append(approvals, agentsvc.ToolApproval{
				ToolCallID: call.ID,
				Approve:    true,
				Headers:    map[string]string{AuthHeaderName: req.AuthHeaderValue},
			})
		case policy.DecisionCancel:
			c.logger.Warn("policy cancelled run", "run_id", runID, "tool_call_id", call.ID, "tool", call.Name)
			if err := c.svc.CancelRun(ctx, threadID, runID); err != nil {
				return false, fmt.Errorf("failed to cancel run: %w", err)
			}
			c.record(runID, domain.EventTypeRunCancelled, domain.RunCancelledPayload{Reason: "policy"})
			return true, nil
		default:
			c.logger.Debug("skipping tool call", "run_id", runID, "tool_call_id", call.ID, "type", call.Type)
		}
	}

	if len(approvals) == 0 {
		// Nothing approvable this round; the next poll will see the run
		// still in requires_action.
		return false, nil
	}

	if err := c.svc.SubmitToolApprovals(ctx, threadID, runID, approvals); err != nil {
		return false, fmt.Errorf("failed to submit tool approvals: %w", err)
	}
	c.record(runID, domain.EventTypeApprovalsSubmitted, domain.ApprovalsSubmittedPayload{Count: len(approvals)})
	return false, nil
}

func (c *Coordinator) decide(ctx context.Context, call agentsvc.RequiredToolCall, req domain.RunRequest) (policy.Decision, error) {
	if c.policy == nil {
		if call.Type == agentsvc.ToolCallTypeMCP {
			return policy.DecisionApprove, nil
		}
		return policy.DecisionSkip, nil
	}
	return c.policy.Decide(ctx, policy.ToolCallInput{
		Type:            call.Type,
		ToolName:        call.Name,
		ServerLabel:     call.ServerLabel,
		ConfiguredLabel: req.ToolServerLabel,
	})
}

func (c *Coordinator) record(runID string, eventType domain.EventType, payload interface{}) {
	if c.sink == nil || runID == "" {
		return
	}
	c.sink.Record(runID, eventType, payload)
}
