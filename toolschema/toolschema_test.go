package toolschema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wenqic/agentgate/toolschema"
)

func TestPropertyListJSON(t *testing.T) {
	props := toolschema.NewPropertyList(
		toolschema.NewProperty("question", "string", "The question to ask the agent."),
		toolschema.NewProperty("top", "integer", "How many passages to retrieve."),
	)

	out, err := props.JSON()
	assert.NoError(t, err)
	assert.JSONEq(t, `[
		{"propertyName": "question", "propertyType": "string", "description": "The question to ask the agent."},
		{"propertyName": "top", "propertyType": "integer", "description": "How many passages to retrieve."}
	]`, out)
}

func TestEmptyPropertyListSerializesAsArray(t *testing.T) {
	out, err := toolschema.NewPropertyList().JSON()
	assert.NoError(t, err)
	assert.Equal(t, "[]", out)
}

func TestNilPropertyListSerializesAsArray(t *testing.T) {
	var props toolschema.PropertyList
	out, err := props.JSON()
	assert.NoError(t, err)
	assert.Equal(t, "[]", out)
}
