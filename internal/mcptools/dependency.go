package mcptools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tarka-io/tarka/internal/entity"
	"github.com/tarka-io/tarka/internal/service"
)

// ─── LinkTool ───────────────────────────────────────────────────────────────

// LinkTool handles the req_link MCP tool. Blocking edges are checked
// against the acyclicity invariant before they are stored.
type LinkTool struct {
	svc *service.Service
}

// NewLinkTool creates a LinkTool with the given service.
func NewLinkTool(svc *service.Service) *LinkTool {
	return &LinkTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *LinkTool) Definition() mcp.Tool {
	return mcp.NewTool("req_link",
		mcp.WithDescription(
			"Create a dependency edge between two entities. "+
				"'blocks' means the source must finish before the target can; "+
				"'blocked-by' is the same edge stated from the other side; it is "+
				"stored as written and cycle-checked as its blocks equivalent. "+
				"'relates-to' is informational. "+
				"Blocking edges that would close a cycle are rejected.",
		),
		mcp.WithString("source_id",
			mcp.Required(),
			mcp.Description("Identifier of the source entity"),
		),
		mcp.WithString("target_id",
			mcp.Required(),
			mcp.Description("Identifier of the target entity"),
		),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Description("Dependency type"),
			mcp.Enum("blocks", "blocked-by", "relates-to"),
		),
		mcp.WithString("note",
			mcp.Description("Optional note explaining the relationship"),
		),
	)
}

// Handle processes the req_link tool call.
func (t *LinkTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d, err := t.svc.AddDependency(ctx,
		req.GetString("source_id", ""),
		req.GetString("target_id", ""),
		entity.DepType(req.GetString("type", "")),
		req.GetString("note", ""),
	)
	if err != nil {
		return errResult(err)
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Linked: `%s` %s `%s` (edge id `%s`).",
		d.SourceID, d.Type, d.TargetID, d.ID,
	)), nil
}

// ─── UnlinkTool ─────────────────────────────────────────────────────────────

// UnlinkTool handles the req_unlink MCP tool.
type UnlinkTool struct {
	svc *service.Service
}

// NewUnlinkTool creates an UnlinkTool with the given service.
func NewUnlinkTool(svc *service.Service) *UnlinkTool {
	return &UnlinkTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *UnlinkTool) Definition() mcp.Tool {
	return mcp.NewTool("req_unlink",
		mcp.WithDescription("Remove a dependency edge by its identifier."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Dependency edge identifier"),
		),
	)
}

// Handle processes the req_unlink tool call.
func (t *UnlinkTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	if err := t.svc.RemoveDependency(ctx, id); err != nil {
		return errResult(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Removed dependency edge %q.", id)), nil
}
