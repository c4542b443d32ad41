// Package server wires all components and creates the MCP server
// instance.
//
// This is the composition root: it creates concrete implementations
// and injects them into the tools and prompts that depend on them. No
// business logic lives here — only wiring.
package server

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/tarka-io/tarka/internal/config"
	"github.com/tarka-io/tarka/internal/mcptools"
	"github.com/tarka-io/tarka/internal/prompts"
	"github.com/tarka-io/tarka/internal/service"
	sqlstore "github.com/tarka-io/tarka/internal/storage/sql"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools and prompts
// registered. This is the single place where dependencies are
// resolved.
//
// The returned cleanup function closes the database connection and
// must be called on shutdown (typically via defer). It is always
// non-nil and safe to call.
func New(cfg *config.Config, log *zap.Logger) (*server.MCPServer, func(), error) {
	store, err := sqlstore.New(cfg.Database.DSN)
	if err != nil {
		return nil, noop, fmt.Errorf("opening store: %w", err)
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Warn("closing store", zap.Error(err))
		}
	}

	svc := service.New(store, log, cfg.Database.OpTimeout)

	s := server.NewMCPServer(
		"tarka",
		Version,
		server.WithToolCapabilities(true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register entity tools ---

	createTool := mcptools.NewCreateTool(svc)
	s.AddTool(createTool.Definition(), createTool.Handle)

	getTool := mcptools.NewGetTool(svc)
	s.AddTool(getTool.Definition(), getTool.Handle)

	updateTool := mcptools.NewUpdateTool(svc)
	s.AddTool(updateTool.Definition(), updateTool.Handle)

	moveTool := mcptools.NewMoveTool(svc)
	s.AddTool(moveTool.Definition(), moveTool.Handle)

	deleteTool := mcptools.NewDeleteTool(svc)
	s.AddTool(deleteTool.Definition(), deleteTool.Handle)

	// --- Register dependency tools ---

	linkTool := mcptools.NewLinkTool(svc)
	s.AddTool(linkTool.Definition(), linkTool.Handle)

	unlinkTool := mcptools.NewUnlinkTool(svc)
	s.AddTool(unlinkTool.Definition(), unlinkTool.Handle)

	// --- Register query tools ---

	ancestryTool := mcptools.NewAncestryTool(svc)
	s.AddTool(ancestryTool.Definition(), ancestryTool.Handle)

	subtreeTool := mcptools.NewSubtreeTool(svc)
	s.AddTool(subtreeTool.Definition(), subtreeTool.Handle)

	closureTool := mcptools.NewClosureTool(svc)
	s.AddTool(closureTool.Definition(), closureTool.Handle)

	impactTool := mcptools.NewImpactTool(svc)
	s.AddTool(impactTool.Definition(), impactTool.Handle)

	// --- Register document and maintenance tools ---

	scaffoldTool := mcptools.NewScaffoldTool()
	s.AddTool(scaffoldTool.Definition(), scaffoldTool.Handle)

	doctorTool := mcptools.NewDoctorTool(svc)
	s.AddTool(doctorTool.Definition(), doctorTool.Handle)

	// --- Register prompts ---

	startPrompt := prompts.NewStartPrompt()
	s.AddPrompt(startPrompt.Definition(), startPrompt.Handle)

	return s, cleanup, nil
}

// noop is a no-op cleanup function used before the store is open.
func noop() {}

// serverInstructions returns the system instructions that tell the AI
// how to use tarka effectively.
func serverInstructions() string {
	return `You have access to tarka, a software requirement hierarchy server.

tarka stores requirements as a strict six-level tree:
Organization → Project → Epic → Component → Feature → Requirement.
Every entity is a frontmatter document (metadata block, blank line,
markdown body) with a lifecycle status:
Draft → Proposed → Approved → InProgress → Done, with Deprecated as a
terminal state reachable from anywhere and Approved → Draft as the only
rollback.

Entities can be linked with typed dependency edges: 'blocks',
'blocked-by' (stored as written, cycle-checked as its blocks
equivalent), and 'relates-to'.
Blocking edges form a DAG; a link that would close a cycle is rejected.

## Typical workflow

1. req_scaffold to draft a document for a kind before creating it
2. req_create to persist entities top-down (Organization first)
3. req_link to record blocking relationships between requirements
4. req_update to advance lifecycle status as work progresses
5. req_ancestry / req_subtree to orient within the tree
6. req_impact before changing anything: it reports the ancestor chain
   plus everything downstream of the entity's blocking edges
7. req_doctor to verify the hierarchy is healthy

## Rules worth remembering

- A parent must be exactly one rank above its children; req_create and
  req_move enforce this
- Deleting an entity with children or edges requires cascade=true
- Status transitions outside the state machine are rejected with the
  set of legal next states`
}
