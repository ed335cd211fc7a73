package agentsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is the HTTP implementation of Service against an assistants-style
// REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new agent service client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

var _ Service = (*Client)(nil)

type createAgentRequest struct {
	Model        string     `json:"model"`
	Instructions string     `json:"instructions,omitempty"`
	Tools        []toolSpec `json:"tools,omitempty"`
}

type toolSpec struct {
	Type        string `json:"type"`
	ServerLabel string `json:"server_label,omitempty"`
	ServerURL   string `json:"server_url,omitempty"`
}

type idResponse struct {
	ID string `json:"id"`
}

// CreateAgent provisions an agent and returns its id.
func (c *Client) CreateAgent(ctx context.Context, p CreateAgentParams) (string, error) {
	req := createAgentRequest{
		Model:        p.Model,
		Instructions: p.Instructions,
	}
	for _, t := range p.Tools {
		req.Tools = append(req.Tools, toolSpec{
			Type:        ToolCallTypeMCP,
			ServerLabel: t.ServerLabel,
			ServerURL:   t.ServerURL,
		})
	}

	var resp idResponse
	if err := c.do(ctx, http.MethodPost, "/assistants", req, &resp); err != nil {
		return "", fmt.Errorf("failed to create agent: %w", err)
	}
	return resp.ID, nil
}

// CreateThread opens a new thread.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	var resp idResponse
	if err := c.do(ctx, http.MethodPost, "/threads", struct{}{}, &resp); err != nil {
		return "", fmt.Errorf("failed to create thread: %w", err)
	}
	return resp.ID, nil
}

// PostMessage appends a message to a thread.
func (c *Client) PostMessage(ctx context.Context, threadID, role, content string) (string, error) {
	req := map[string]string{"role": role, "content": content}
	var resp idResponse
	if err := c.do(ctx, http.MethodPost, "/threads/"+threadID+"/messages", req, &resp); err != nil {
		return "", fmt.Errorf("failed to post message: %w", err)
	}
	return resp.ID, nil
}

type createRunRequest struct {
	AssistantID   string         `json:"assistant_id"`
	ToolResources *ToolResources `json:"tool_resources,omitempty"`
}

// CreateRun starts a run on the thread.
func (c *Client) CreateRun(ctx context.Context, threadID, agentID string, resources *ToolResources) (*Run, error) {
	req := createRunRequest{AssistantID: agentID, ToolResources: resources}
	var run Run
	if err := c.do(ctx, http.MethodPost, "/threads/"+threadID+"/runs", req, &run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return &run, nil
}

// GetRun fetches the current run snapshot.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*Run, error) {
	var run Run
	if err := c.do(ctx, http.MethodGet, "/threads/"+threadID+"/runs/"+runID, nil, &run); err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

type submitApprovalsRequest struct {
	ToolApprovals []ToolApproval `json:"tool_approvals"`
}

// SubmitToolApprovals answers a requires_action run.
func (c *Client) SubmitToolApprovals(ctx context.Context, threadID, runID string, approvals []ToolApproval) error {
	req := submitApprovalsRequest{ToolApprovals: approvals}
	path := "/threads/" + threadID + "/runs/" + runID + "/submit_tool_outputs"
	if err := c.do(ctx, http.MethodPost, path, req, nil); err != nil {
		return fmt.Errorf("failed to submit tool approvals: %w", err)
	}
	return nil
}

// CancelRun requests cancellation of a run.
func (c *Client) CancelRun(ctx context.Context, threadID, runID string) error {
	path := "/threads/" + threadID + "/runs/" + runID + "/cancel"
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, nil); err != nil {
		return fmt.Errorf("failed to cancel run: %w", err)
	}
	return nil
}

type listMessagesResponse struct {
	Data []threadMessage `json:"data"`
}

type threadMessage struct {
	ID        string           `json:"id"`
	Role      string           `json:"role"`
	Content   []messageContent `json:"content"`
	CreatedAt int64            `json:"created_at"`
}

type messageContent struct {
	Type string       `json:"type"`
	Text *messageText `json:"text,omitempty"`
}

type messageText struct {
	Value string `json:"value"`
}

// ListMessages returns all thread messages in creation order ascending.
// The service pages newest-first by default, so ascending order is
// requested explicitly.
func (c *Client) ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error) {
	var resp listMessagesResponse
	path := "/threads/" + threadID + "/messages?order=asc"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	messages := make([]ThreadMessage, 0, len(resp.Data))
	for _, m := range resp.Data {
		var text strings.Builder
		for _, part := range m.Content {
			if part.Type == "text" && part.Text != nil {
				text.WriteString(part.Text.Value)
			}
		}
		messages = append(messages, ThreadMessage{
			ID:        m.ID,
			Role:      m.Role,
			Text:      text.String(),
			CreatedAt: m.CreatedAt,
		})
	}
	return messages, nil
}

// DeleteAgent releases the agent resource.
func (c *Client) DeleteAgent(ctx context.Context, agentID string) error {
	if err := c.do(ctx, http.MethodDelete, "/assistants/"+agentID, nil, nil); err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}
	return nil
}

type errorResponse struct {
	Error *apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		httpReq.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != nil {
			return fmt.Errorf("agent service error [%d]: %s (code: %s)", resp.StatusCode, errResp.Error.Message, errResp.Error.Code)
		}
		return fmt.Errorf("agent service error [%d]: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
