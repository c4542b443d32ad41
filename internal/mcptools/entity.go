package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tarka-io/tarka/internal/entity"
	"github.com/tarka-io/tarka/internal/service"
	"github.com/tarka-io/tarka/internal/templates"
)

// ─── CreateTool ─────────────────────────────────────────────────────────────

// CreateTool handles the req_create MCP tool. It creates an entity
// under a parent; the service assigns the identifier and the initial
// Draft status.
type CreateTool struct {
	svc *service.Service
}

// NewCreateTool creates a CreateTool with the given service.
func NewCreateTool(svc *service.Service) *CreateTool {
	return &CreateTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *CreateTool) Definition() mcp.Tool {
	return mcp.NewTool("req_create",
		mcp.WithDescription(
			"Create an entity in the requirement hierarchy. "+
				"Entities nest strictly: Organization → Project → Epic → Component → Feature → Requirement. "+
				"Organizations are top-level; everything else requires a parent_id exactly one rank above. "+
				"New entities start in Draft status.",
		),
		mcp.WithString("kind",
			mcp.Required(),
			mcp.Description("Entity kind"),
			mcp.Enum("Organization", "Project", "Epic", "Component", "Feature", "Requirement"),
		),
		mcp.WithString("parent_id",
			mcp.Description("Identifier of the parent entity. Omit for Organizations."),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Human-readable title"),
		),
		mcp.WithString("description",
			mcp.Description("Markdown body of the entity's document"),
		),
	)
}

// Handle processes the req_create tool call.
func (t *CreateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, errRes := kindArg(req)
	if errRes != nil {
		return errRes, nil
	}

	e, err := t.svc.Create(ctx, service.CreateParams{
		Kind:        kind,
		ParentID:    req.GetString("parent_id", ""),
		Title:       req.GetString("title", ""),
		Description: req.GetString("description", ""),
	})
	if err != nil {
		return errResult(err)
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"# %s Created\n\n**ID:** `%s`\n\n```markdown\n%s\n```",
		e.Kind, e.ID, templates.Render(e),
	)), nil
}

// ─── GetTool ────────────────────────────────────────────────────────────────

// GetTool handles the req_get MCP tool.
type GetTool struct {
	svc *service.Service
}

// NewGetTool creates a GetTool with the given service.
func NewGetTool(svc *service.Service) *GetTool {
	return &GetTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *GetTool) Definition() mcp.Tool {
	return mcp.NewTool("req_get",
		mcp.WithDescription(
			"Fetch one entity as a rendered frontmatter document: "+
				"a key/value metadata block, a blank line, then the markdown body.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Entity identifier"),
		),
	)
}

// Handle processes the req_get tool call.
func (t *GetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	e, err := t.svc.Get(ctx, id)
	if err != nil {
		return errResult(err)
	}

	return mcp.NewToolResultText(string(templates.Render(e))), nil
}

// ─── UpdateTool ─────────────────────────────────────────────────────────────

// UpdateTool handles the req_update MCP tool. Status changes are
// validated against the lifecycle state machine.
type UpdateTool struct {
	svc *service.Service
}

// NewUpdateTool creates an UpdateTool with the given service.
func NewUpdateTool(svc *service.Service) *UpdateTool {
	return &UpdateTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *UpdateTool) Definition() mcp.Tool {
	return mcp.NewTool("req_update",
		mcp.WithDescription(
			"Update an entity's title, description, or lifecycle status. "+
				"Status moves along Draft → Proposed → Approved → InProgress → Done; "+
				"Deprecated is terminal and reachable from any state; "+
				"Approved → Draft is the only rollback. Illegal transitions are rejected.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Entity identifier"),
		),
		mcp.WithString("title",
			mcp.Description("New title"),
		),
		mcp.WithString("description",
			mcp.Description("New markdown body"),
		),
		mcp.WithString("status",
			mcp.Description("New lifecycle status"),
			mcp.Enum("Draft", "Proposed", "Approved", "InProgress", "Done", "Deprecated"),
		),
	)
}

// Handle processes the req_update tool call.
func (t *UpdateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	args := req.GetArguments()
	var p service.UpdateParams
	if v, ok := args["title"].(string); ok {
		p.Title = &v
	}
	if v, ok := args["description"].(string); ok {
		p.Description = &v
	}
	if v, ok := args["status"].(string); ok {
		status, err := entity.ParseStatus(v)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		p.Status = &status
	}
	if p.Title == nil && p.Description == nil && p.Status == nil {
		return mcp.NewToolResultError("nothing to update: provide title, description, or status"), nil
	}

	e, err := t.svc.Update(ctx, id, p)
	if err != nil {
		return errResult(err)
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"# %s Updated\n\n```markdown\n%s\n```",
		e.Kind, templates.Render(e),
	)), nil
}

// ─── MoveTool ───────────────────────────────────────────────────────────────

// MoveTool handles the req_move MCP tool.
type MoveTool struct {
	svc *service.Service
}

// NewMoveTool creates a MoveTool with the given service.
func NewMoveTool(svc *service.Service) *MoveTool {
	return &MoveTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *MoveTool) Definition() mcp.Tool {
	return mcp.NewTool("req_move",
		mcp.WithDescription(
			"Re-parent an entity (and its whole subtree) under a new parent. "+
				"Rejected when the new parent's rank does not fit or when the "+
				"new parent is a descendant of the entity being moved.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Entity to move"),
		),
		mcp.WithString("new_parent_id",
			mcp.Required(),
			mcp.Description("Identifier of the new parent"),
		),
	)
}

// Handle processes the req_move tool call.
func (t *MoveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	newParent := req.GetString("new_parent_id", "")
	if id == "" || newParent == "" {
		return mcp.NewToolResultError("'id' and 'new_parent_id' are required"), nil
	}

	e, err := t.svc.Move(ctx, id, newParent)
	if err != nil {
		return errResult(err)
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Moved %s %q under %q.", e.Kind, e.ID, e.ParentID,
	)), nil
}

// ─── DeleteTool ─────────────────────────────────────────────────────────────

// DeleteTool handles the req_delete MCP tool. The cascade policy is an
// explicit caller decision, never a hidden default.
type DeleteTool struct {
	svc *service.Service
}

// NewDeleteTool creates a DeleteTool with the given service.
func NewDeleteTool(svc *service.Service) *DeleteTool {
	return &DeleteTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *DeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("req_delete",
		mcp.WithDescription(
			"Delete an entity. Without cascade the call fails when children or "+
				"dependency edges exist; with cascade=true the whole subtree and "+
				"every incident edge are removed in one transaction.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Entity identifier"),
		),
		mcp.WithBoolean("cascade",
			mcp.Description("Delete the subtree and incident edges too (default: false)"),
		),
	)
}

// Handle processes the req_delete tool call.
func (t *DeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	cascade := boolArg(req, "cascade", false)

	res, err := t.svc.Delete(ctx, id, cascade)
	if err != nil {
		return errResult(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Deleted %d entit", res.EntitiesDeleted)
	if res.EntitiesDeleted == 1 {
		b.WriteString("y")
	} else {
		b.WriteString("ies")
	}
	fmt.Fprintf(&b, " and %d dependency edge(s).", res.DependenciesDeleted)
	return mcp.NewToolResultText(b.String()), nil
}
