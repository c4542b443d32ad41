package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tarka-io/tarka/internal/service"
)

// DoctorTool handles the req_doctor MCP tool.
type DoctorTool struct {
	svc *service.Service
}

// NewDoctorTool creates a DoctorTool with the given service.
func NewDoctorTool(svc *service.Service) *DoctorTool {
	return &DoctorTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *DoctorTool) Definition() mcp.Tool {
	return mcp.NewTool("req_doctor",
		mcp.WithDescription(
			"Scan the whole hierarchy for broken parent links: top-level "+
				"entities with a parent, entities missing a parent, parents "+
				"that do not exist, and parents of the wrong kind. A healthy "+
				"graph reports no violations.",
		),
	)
}

// Handle processes the req_doctor tool call.
func (t *DoctorTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	violations, err := t.svc.Doctor(ctx)
	if err != nil {
		return errResult(err)
	}

	if len(violations) == 0 {
		return mcp.NewToolResultText("# Hierarchy Check\n\nNo violations found."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Hierarchy Check\n\n%d violation(s):\n\n", len(violations))
	for _, v := range violations {
		fmt.Fprintf(&b, "- **%s** `%s`: %s\n", v.Kind, v.EntityID, v.Problem)
	}
	return mcp.NewToolResultText(b.String()), nil
}
