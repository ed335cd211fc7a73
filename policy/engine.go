// Package policy decides what to do with pending tool calls observed under
// requires_action: approve, skip, or cancel the run.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

// Decision is a policy verdict for one pending tool call.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionSkip    Decision = "skip"
	DecisionCancel  Decision = "cancel"
)

// ToolCallInput is the policy input for one pending tool call.
type ToolCallInput struct {
	Type            string `json:"type"`
	ToolName        string `json:"tool_name"`
	ServerLabel     string `json:"server_label"`
	ConfiguredLabel string `json:"configured_label"`
}

// Engine is the OPA approval policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given rego content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.approval_policy.decision"),
		rego.Module("approval_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Decide evaluates the policy for one pending tool call.
func (e *Engine) Decide(ctx context.Context, input ToolCallInput) (Decision, error) {
	in := map[string]interface{}{
		"type":             input.Type,
		"tool_name":        input.ToolName,
		"server_label":     input.ServerLabel,
		"configured_label": input.ConfiguredLabel,
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(in))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The policy is expected to define a default; without one, leave
		// the call pending rather than authorizing it.
		return DecisionSkip, nil
	}

	val := results[0].Expressions[0].Value
	s, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("policy returned %T, want string", val)
	}

	switch Decision(s) {
	case DecisionApprove, DecisionSkip, DecisionCancel:
		return Decision(s), nil
	default:
		return "", fmt.Errorf("policy returned unknown decision %q", s)
	}
}

// DefaultPolicy approves MCP tool calls addressed to the configured tool
// server and leaves every other required-action kind pending. Operators can
// swap in a rego file that returns "cancel" for unsupported kinds instead.
const DefaultPolicy = `
package approval_policy

default decision := "skip"

decision := "approve" if {
	input.type == "mcp"
	input.server_label == input.configured_label
}

decision := "approve" if {
	input.type == "mcp"
	input.server_label == ""
}
`
