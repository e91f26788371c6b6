// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// ToolSchema is the nested OpenAI-style function schema advertised to
// the backend with every request.
type ToolSchema struct {
	// Type is always "function".
	Type string `json:"type"`

	// Function describes the tool.
	Function FunctionSchema `json:"function"`
}

// FunctionSchema describes one callable tool.
type FunctionSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterSchema `json:"parameters"`
}

// ParameterSchema is the JSON-schema object describing tool arguments.
type ParameterSchema struct {
	// Type is always "object".
	Type string `json:"type"`

	// Properties maps argument names to their schemas.
	Properties map[string]PropertySchema `json:"properties"`

	// Required lists mandatory argument names.
	Required []string `json:"required,omitempty"`
}

// PropertySchema describes one tool argument.
type PropertySchema struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`

	// Items describes array elements when Type is "array".
	Items *PropertySchema `json:"items,omitempty"`
}

// NewFunctionSchema builds a ToolSchema for a function tool.
//
// Inputs:
//
//	name - The tool name as the model must emit it.
//	description - Model-facing usage description.
//	properties - Argument schemas keyed by argument name.
//	required - Mandatory argument names.
//
// Outputs:
//
//	ToolSchema - Ready to serialize into a backend request.
func NewFunctionSchema(name, description string, properties map[string]PropertySchema, required ...string) ToolSchema {
	return ToolSchema{
		Type: "function",
		Function: FunctionSchema{
			Name:        name,
			Description: description,
			Parameters: ParameterSchema{
				Type:       "object",
				Properties: properties,
				Required:   required,
			},
		},
	}
}
