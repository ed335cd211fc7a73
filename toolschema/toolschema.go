// Package toolschema describes MCP tool input schemas: the property
// declarations AI assistants use to invoke a tool with the right
// parameters.
package toolschema

import "encoding/json"

// Property defines one input property of an MCP tool.
type Property struct {
	PropertyName string `json:"propertyName"`
	PropertyType string `json:"propertyType"`
	Description  string `json:"description"`
}

// NewProperty creates a property declaration.
func NewProperty(name, propType, description string) Property {
	return Property{
		PropertyName: name,
		PropertyType: propType,
		Description:  description,
	}
}

// PropertyList is an ordered collection of tool properties.
type PropertyList []Property

// NewPropertyList creates a property list.
func NewPropertyList(properties ...Property) PropertyList {
	return PropertyList(properties)
}

// JSON returns the serialized property list as required for MCP tool
// registration. An empty list serializes as [] rather than null.
func (l PropertyList) JSON() (string, error) {
	if l == nil {
		l = PropertyList{}
	}
	data, err := json.Marshal(l)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Tool declares one MCP tool exposed by the gateway.
type Tool struct {
	Name        string       `json:"toolName"`
	Description string       `json:"description"`
	Properties  PropertyList `json:"properties"`
}
