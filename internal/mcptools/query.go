package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tarka-io/tarka/internal/entity"
	"github.com/tarka-io/tarka/internal/service"
)

// listMarkdown renders a slice of entities as a compact markdown list.
func listMarkdown(header string, entities []*entity.Entity) string {
	var b strings.Builder
	b.WriteString("# " + header + "\n\n")
	if len(entities) == 0 {
		b.WriteString("_none_\n")
		return b.String()
	}
	for _, e := range entities {
		fmt.Fprintf(&b, "- **%s** `%s` [%s]: %s\n", e.Kind, e.ID, e.Status, e.Title)
	}
	return b.String()
}

// ─── AncestryTool ───────────────────────────────────────────────────────────

// AncestryTool handles the req_ancestry MCP tool.
type AncestryTool struct {
	svc *service.Service
}

// NewAncestryTool creates an AncestryTool with the given service.
func NewAncestryTool(svc *service.Service) *AncestryTool {
	return &AncestryTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *AncestryTool) Definition() mcp.Tool {
	return mcp.NewTool("req_ancestry",
		mcp.WithDescription(
			"Return the path from the root of the hierarchy down to an entity, "+
				"root first. Useful for orienting: which project and epic does "+
				"this requirement belong to?",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Entity identifier"),
		),
	)
}

// Handle processes the req_ancestry tool call.
func (t *AncestryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	path, err := t.svc.AncestryPath(ctx, id)
	if err != nil {
		return errResult(err)
	}

	var b strings.Builder
	b.WriteString("# Ancestry\n\n")
	for i, e := range path {
		fmt.Fprintf(&b, "%s- **%s** `%s`: %s\n", strings.Repeat("  ", i), e.Kind, e.ID, e.Title)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── SubtreeTool ────────────────────────────────────────────────────────────

// SubtreeTool handles the req_subtree MCP tool.
type SubtreeTool struct {
	svc *service.Service
}

// NewSubtreeTool creates a SubtreeTool with the given service.
func NewSubtreeTool(svc *service.Service) *SubtreeTool {
	return &SubtreeTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *SubtreeTool) Definition() mcp.Tool {
	return mcp.NewTool("req_subtree",
		mcp.WithDescription(
			"Return an entity and all of its descendants. The root entity is "+
				"included in the result.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Root entity identifier"),
		),
	)
}

// Handle processes the req_subtree tool call.
func (t *SubtreeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	nodes, err := t.svc.Subtree(ctx, id)
	if err != nil {
		return errResult(err)
	}
	return mcp.NewToolResultText(listMarkdown(fmt.Sprintf("Subtree of %s (%d entities)", id, len(nodes)), nodes)), nil
}

// ─── ClosureTool ────────────────────────────────────────────────────────────

// ClosureTool handles the req_closure MCP tool.
type ClosureTool struct {
	svc *service.Service
}

// NewClosureTool creates a ClosureTool with the given service.
func NewClosureTool(svc *service.Service) *ClosureTool {
	return &ClosureTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *ClosureTool) Definition() mcp.Tool {
	return mcp.NewTool("req_closure",
		mcp.WithDescription(
			"Return the transitive closure of blocking edges from an entity. "+
				"Direction 'blocks' walks downstream to everything this entity "+
				"holds up; 'blocked-by' walks upstream to everything holding it up.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Entity identifier"),
		),
		mcp.WithString("direction",
			mcp.Required(),
			mcp.Description("Traversal direction"),
			mcp.Enum("blocks", "blocked-by"),
		),
	)
}

// Handle processes the req_closure tool call.
func (t *ClosureTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	dir := service.Direction(req.GetString("direction", ""))

	closure, err := t.svc.DependencyClosure(ctx, id, dir)
	if err != nil {
		return errResult(err)
	}
	return mcp.NewToolResultText(listMarkdown(fmt.Sprintf("Closure (%s) of %s", dir, id), closure)), nil
}

// ─── ImpactTool ─────────────────────────────────────────────────────────────

// ImpactTool handles the req_impact MCP tool.
type ImpactTool struct {
	svc *service.Service
}

// NewImpactTool creates an ImpactTool with the given service.
func NewImpactTool(svc *service.Service) *ImpactTool {
	return &ImpactTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *ImpactTool) Definition() mcp.Tool {
	return mcp.NewTool("req_impact",
		mcp.WithDescription(
			"Estimate the blast radius of changing an entity: its ancestor "+
				"chain plus everything downstream of its blocking edges. The "+
				"entity itself is not included.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Entity identifier"),
		),
	)
}

// Handle processes the req_impact tool call.
func (t *ImpactTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	impact, err := t.svc.ImpactOf(ctx, id)
	if err != nil {
		return errResult(err)
	}
	return mcp.NewToolResultText(listMarkdown(fmt.Sprintf("Impact of %s (%d entities)", id, len(impact)), impact)), nil
}
