package domain

// AskRequest is the inbound body for the ask endpoints. The question may
// alternatively arrive as a query parameter.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the success body for the ask endpoints.
type AskResponse struct {
	Answer       string              `json:"answer"`
	RunStatus    RunState            `json:"run_status"`
	RunID        string              `json:"run_id"`
	Conversation []ConversationEntry `json:"conversation"`
	RunError     *RunError           `json:"run_error,omitempty"`
	Sources      []SearchSource      `json:"sources,omitempty"`
}

// SearchSource identifies a retrieved passage that was folded into the
// agent prompt.
type SearchSource struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// ErrorResponse is the error body for all endpoints.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}
