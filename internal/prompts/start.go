// Package prompts implements MCP prompt handlers.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// StartPrompt handles the tarka-start MCP prompt.
// It guides the AI to bootstrap a requirement hierarchy for a new
// piece of work.
type StartPrompt struct{}

// NewStartPrompt creates a StartPrompt.
func NewStartPrompt() *StartPrompt {
	return &StartPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StartPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("tarka-start",
		mcp.WithPromptDescription(
			"Bootstrap a requirement hierarchy for a new project. "+
				"This walks you from an organization down to the first "+
				"requirements, creating the tree top-down.",
		),
		mcp.WithArgument("organization",
			mcp.ArgumentDescription("Name of the organization that owns the work"),
		),
		mcp.WithArgument("project",
			mcp.ArgumentDescription("Name of the project to set up"),
		),
	)
}

// Handle processes the tarka-start prompt request.
func (p *StartPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	org := "my-organization"
	project := "my-project"
	if args := req.Params.Arguments; args != nil {
		if v, ok := args["organization"]; ok && v != "" {
			org = v
		}
		if v, ok := args["project"]; ok && v != "" {
			project = v
		}
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Set up requirement hierarchy: %s / %s", org, project),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I want to set up a requirement hierarchy for project '%s' under organization '%s'.\n\n"+
						"Please:\n"+
						"1. Run `req_create` with kind='Organization' and title='%s' (reuse an existing one if I tell you it exists)\n"+
						"2. Run `req_create` with kind='Project' and title='%s' under that organization\n"+
						"3. Ask me what the major bodies of work are, then create an Epic for each\n"+
						"4. For the first epic, help me break it into Components and Features, scaffolding each document with `req_scaffold` before creating it\n"+
						"5. When we reach Requirements, fill in the Acceptance Criteria section and record blocking relationships with `req_link`\n"+
						"6. Finish by running `req_doctor` to confirm the hierarchy is healthy",
					project, org, org, project,
				)),
			},
		},
	}, nil
}
