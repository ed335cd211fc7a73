// Package search provides the retrieval client used by the ask-semantic
// and ask-vector endpoints. The index and its ranking live in the remote
// search service; this is a thin query client.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Mode selects the query strategy.
type Mode string

const (
	ModeSemantic Mode = "semantic"
	ModeVector   Mode = "vector"
)

// Document is one retrieved passage.
type Document struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Client queries a search REST endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	index      string
	httpClient *http.Client
}

// NewClient creates a new search client for the given index.
func NewClient(endpoint, apiKey, index string, timeout time.Duration) *Client {
	return &Client{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		apiKey:   apiKey,
		index:    index,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type searchRequest struct {
	Search        string        `json:"search,omitempty"`
	QueryType     string        `json:"queryType,omitempty"`
	Top           int           `json:"top,omitempty"`
	VectorQueries []vectorQuery `json:"vectorQueries,omitempty"`
}

type vectorQuery struct {
	Kind   string `json:"kind"`
	Text   string `json:"text"`
	Fields string `json:"fields"`
	K      int    `json:"k"`
}

type searchResponse struct {
	Value []searchHit `json:"value"`
}

type searchHit struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"@search.score"`
}

// Query runs a search and returns up to top documents, best first.
func (c *Client) Query(ctx context.Context, query string, mode Mode, top int) ([]Document, error) {
	if top <= 0 {
		top = 3
	}

	req := searchRequest{}
	switch mode {
	case ModeVector:
		req.VectorQueries = []vectorQuery{{
			Kind:   "text",
			Text:   query,
			Fields: "contentVector",
			K:      top,
		}}
	default:
		req.Search = query
		req.QueryType = "semantic"
		req.Top = top
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	u := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=2024-07-01", c.endpoint, url.PathEscape(c.index))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search service error [%d]: %s", resp.StatusCode, string(respBody))
	}

	var result searchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	docs := make([]Document, 0, len(result.Value))
	for _, hit := range result.Value {
		docs = append(docs, Document{ID: hit.ID, Content: hit.Content, Score: hit.Score})
	}
	return docs, nil
}

// BuildPrompt folds retrieved passages into the question so the agent can
// ground its answer on them.
func BuildPrompt(question string, docs []Document) string {
	if len(docs) == 0 {
		return question
	}
	var b strings.Builder
	b.WriteString("Use the following context to answer the question.\n\nContext:\n")
	for _, d := range docs {
		b.WriteString("- ")
		b.WriteString(d.Content)
		b.WriteString("\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
