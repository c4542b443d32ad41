package mcptools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tarka-io/tarka/internal/templates"
)

// ScaffoldTool handles the req_scaffold MCP tool. It renders a blank
// document for a kind without touching storage, so assistants can draft
// content before creating the entity.
type ScaffoldTool struct{}

// NewScaffoldTool creates a ScaffoldTool.
func NewScaffoldTool() *ScaffoldTool {
	return &ScaffoldTool{}
}

// Definition returns the MCP tool definition for registration.
func (t *ScaffoldTool) Definition() mcp.Tool {
	return mcp.NewTool("req_scaffold",
		mcp.WithDescription(
			"Render a blank frontmatter document for a kind, with that kind's "+
				"required sections and per-section guidance. Nothing is stored; "+
				"use req_create to persist the drafted content.",
		),
		mcp.WithString("kind",
			mcp.Required(),
			mcp.Description("Entity kind to scaffold"),
			mcp.Enum("Organization", "Project", "Epic", "Component", "Feature", "Requirement"),
		),
	)
}

// Handle processes the req_scaffold tool call.
func (t *ScaffoldTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, errRes := kindArg(req)
	if errRes != nil {
		return errRes, nil
	}

	doc, err := templates.Scaffold(kind)
	if err != nil {
		return errResult(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"# %s Scaffold\n\n```markdown\n%s\n```", kind, doc,
	)), nil
}
