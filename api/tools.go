package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wenqic/agentgate/toolschema"
)

// TriggerTools declares the MCP tools this gateway exposes to assistants.
var TriggerTools = []toolschema.Tool{
	{
		Name:        "askAgent",
		Description: "Relays a question to the managed agent and returns its answer.",
		Properties: toolschema.NewPropertyList(
			toolschema.NewProperty("question", "string", "The question to ask the agent."),
		),
	},
	{
		Name:        "askAgentWithSearch",
		Description: "Retrieves relevant passages from the search index, then asks the managed agent with that context.",
		Properties: toolschema.NewPropertyList(
			toolschema.NewProperty("question", "string", "The question to ask the agent."),
			toolschema.NewProperty("mode", "string", "Retrieval mode: semantic or vector."),
		),
	},
}

// ListTools returns the gateway's MCP tool declarations.
func (h *Handler) ListTools(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"tools": TriggerTools})
}
