// Package mcptools implements MCP tool handlers for the requirement
// hierarchy.
//
// Each tool follows the same pattern:
// - A struct with the service injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// Tools return rendered frontmatter documents rather than raw field
// dumps, so assistants always receive navigable markdown.
package mcptools

import (
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tarka-io/tarka/internal/entity"
)

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// errResult translates a domain error into a tool error result. Only
// infrastructure failures propagate as Go errors; every outcome of the
// taxonomy is reported to the assistant as tool output so it can react.
func errResult(err error) (*mcp.CallToolResult, error) {
	var te *entity.TimeoutError
	switch {
	case entity.IsValidation(err),
		entity.IsNotFound(err),
		entity.IsConflict(err),
		errors.As(err, &te):
		return mcp.NewToolResultError(err.Error()), nil
	}
	return nil, err
}

// kindArg parses the entity kind argument shared by several tools.
func kindArg(req mcp.CallToolRequest) (entity.Kind, *mcp.CallToolResult) {
	raw := req.GetString("kind", "")
	if raw == "" {
		return "", mcp.NewToolResultError("'kind' is required: Organization, Project, Epic, Component, Feature, or Requirement")
	}
	kind, err := entity.ParseKind(raw)
	if err != nil {
		return "", mcp.NewToolResultError(err.Error())
	}
	return kind, nil
}
