// Package agentsvc provides the remote agent service abstraction and its
// HTTP client. The service owns the run lifecycle; the gateway only
// observes it.
package agentsvc

import "context"

// Service is the remote agent service consumed by the coordinator.
type Service interface {
	// CreateAgent provisions an agent bound to the given tool definitions
	// and returns its id.
	CreateAgent(ctx context.Context, p CreateAgentParams) (string, error)

	// CreateThread opens a new conversation thread.
	CreateThread(ctx context.Context) (string, error)

	// PostMessage appends a message to a thread.
	PostMessage(ctx context.Context, threadID, role, content string) (string, error)

	// CreateRun starts a run of the agent on the thread.
	CreateRun(ctx context.Context, threadID, agentID string, resources *ToolResources) (*Run, error)

	// GetRun fetches the current run snapshot.
	GetRun(ctx context.Context, threadID, runID string) (*Run, error)

	// SubmitToolApprovals answers a requires_action run with a batch of
	// tool-call approvals.
	SubmitToolApprovals(ctx context.Context, threadID, runID string, approvals []ToolApproval) error

	// CancelRun requests cancellation of a run.
	CancelRun(ctx context.Context, threadID, runID string) error

	// ListMessages returns all thread messages in creation order ascending.
	ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error)

	// DeleteAgent releases the agent resource. Expected idempotent.
	DeleteAgent(ctx context.Context, agentID string) error
}

// CreateAgentParams describes the agent to provision.
type CreateAgentParams struct {
	Model        string
	Instructions string
	Tools        []MCPToolDefinition
}

// MCPToolDefinition declares an external MCP tool server the agent may call.
type MCPToolDefinition struct {
	ServerLabel string `json:"server_label"`
	ServerURL   string `json:"server_url"`
}

// ToolResources carries per-run MCP resource descriptors, including the
// headers the agent service sends to the tool server.
type ToolResources struct {
	MCP []MCPResource `json:"mcp,omitempty"`
}

// MCPResource configures one MCP server for a run.
type MCPResource struct {
	ServerLabel     string            `json:"server_label"`
	Headers         map[string]string `json:"headers,omitempty"`
	RequireApproval string            `json:"require_approval,omitempty"`
}

// RequiredActionSubmitApprovals is the required-action type the gateway
// knows how to answer.
const RequiredActionSubmitApprovals = "submit_tool_approval"

// ToolCallTypeMCP is the supported pending tool-call kind.
const ToolCallTypeMCP = "mcp"

// Run is a remote run snapshot.
type Run struct {
	ID             string          `json:"id"`
	ThreadID       string          `json:"thread_id"`
	Status         string          `json:"status"`
	RequiredAction *RequiredAction `json:"required_action,omitempty"`
	LastError      *RunLastError   `json:"last_error,omitempty"`
}

// RequiredAction describes what the service is waiting for.
type RequiredAction struct {
	Type      string            `json:"type"`
	ToolCalls []RequiredToolCall `json:"tool_calls,omitempty"`
}

// RequiredToolCall is one pending tool call awaiting approval.
type RequiredToolCall struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name,omitempty"`
	Arguments   string `json:"arguments,omitempty"`
	ServerLabel string `json:"server_label,omitempty"`
}

// RunLastError is the service-reported failure detail on a failed run.
type RunLastError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ToolApproval authorizes (or denies) one pending tool call.
type ToolApproval struct {
	ToolCallID string            `json:"tool_call_id"`
	Approve    bool              `json:"approve"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// ThreadMessage is one message on a thread, already projected to text.
type ThreadMessage struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"created_at"`
}
