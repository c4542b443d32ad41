package mcptools

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/tarka-io/tarka/internal/entity"
	"github.com/tarka-io/tarka/internal/service"
	sqlstore "github.com/tarka-io/tarka/internal/storage/sql"
)

func newTestService(t *testing.T) *service.Service {
	t.Helper()
	store, err := sqlstore.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("setup: opening store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return service.New(store, zap.NewNop(), 10*time.Second)
}

func toolRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func isErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

// getResultText extracts the text content from a CallToolResult.
func getResultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// createViaTool drives CreateTool and returns the created entity's id
// by looking it up through the service.
func createViaTool(t *testing.T, svc *service.Service, kind, parentID, title string) string {
	t.Helper()
	tool := NewCreateTool(svc)
	result, err := tool.Handle(context.Background(), toolRequest(map[string]interface{}{
		"kind":      kind,
		"parent_id": parentID,
		"title":     title,
	}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}

	// The id is echoed in the response; extract it from the backticks.
	text := getResultText(result)
	start := strings.Index(text, "`")
	end := strings.Index(text[start+1:], "`")
	if start < 0 || end < 0 {
		t.Fatalf("response does not echo the id: %s", text)
	}
	return text[start+1 : start+1+end]
}

func TestCreateTool_Handle_Success(t *testing.T) {
	svc := newTestService(t)
	id := createViaTool(t, svc, "Organization", "", "Acme")

	e, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("created entity not found: %v", err)
	}
	if e.Kind != entity.KindOrganization || e.Status != entity.StatusDraft {
		t.Errorf("created entity = %s/%s, want Organization/Draft", e.Kind, e.Status)
	}
}

func TestCreateTool_Handle_InvalidKind(t *testing.T) {
	svc := newTestService(t)
	tool := NewCreateTool(svc)

	result, err := tool.Handle(context.Background(), toolRequest(map[string]interface{}{
		"kind":  "Task",
		"title": "Nope",
	}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !isErrorResult(result) {
		t.Fatal("expected error result for unknown kind")
	}
}

func TestCreateTool_Handle_WrongParentRank(t *testing.T) {
	svc := newTestService(t)
	orgID := createViaTool(t, svc, "Organization", "", "Acme")

	tool := NewCreateTool(svc)
	result, err := tool.Handle(context.Background(), toolRequest(map[string]interface{}{
		"kind":      "Epic",
		"parent_id": orgID,
		"title":     "Misplaced",
	}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !isErrorResult(result) {
		t.Fatal("expected error result for wrong parent rank")
	}
	if !strings.Contains(getResultText(result), "parent") {
		t.Errorf("error should mention the parent: %s", getResultText(result))
	}
}

func TestGetTool_Handle_RendersDocument(t *testing.T) {
	svc := newTestService(t)
	id := createViaTool(t, svc, "Organization", "", "Acme")

	tool := NewGetTool(svc)
	result, err := tool.Handle(context.Background(), toolRequest(map[string]interface{}{"id": id}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	text := getResultText(result)
	if !strings.Contains(text, "id: "+id) {
		t.Errorf("document should carry the id line: %s", text)
	}
	if !strings.Contains(text, "## Overview") {
		t.Errorf("document should carry the Overview section: %s", text)
	}
}

func TestGetTool_Handle_NotFound(t *testing.T) {
	svc := newTestService(t)
	tool := NewGetTool(svc)

	result, err := tool.Handle(context.Background(), toolRequest(map[string]interface{}{"id": "missing"}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !isErrorResult(result) {
		t.Fatal("expected error result for missing entity")
	}
}

func TestUpdateTool_Handle_IllegalTransition(t *testing.T) {
	svc := newTestService(t)
	id := createViaTool(t, svc, "Organization", "", "Acme")

	tool := NewUpdateTool(svc)
	result, err := tool.Handle(context.Background(), toolRequest(map[string]interface{}{
		"id":     id,
		"status": "Done",
	}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !isErrorResult(result) {
		t.Fatal("expected error result for Draft → Done")
	}
	if !strings.Contains(getResultText(result), "Proposed") {
		t.Errorf("error should name the legal next states: %s", getResultText(result))
	}
}

func TestLinkTool_Handle_CycleRejected(t *testing.T) {
	svc := newTestService(t)
	orgID := createViaTool(t, svc, "Organization", "", "Acme")
	aID := createViaTool(t, svc, "Project", orgID, "A")
	bID := createViaTool(t, svc, "Project", orgID, "B")

	tool := NewLinkTool(svc)
	result, err := tool.Handle(context.Background(), toolRequest(map[string]interface{}{
		"source_id": aID, "target_id": bID, "type": "blocks",
	}))
	if err != nil || isErrorResult(result) {
		t.Fatalf("first link failed: %v / %s", err, getResultText(result))
	}

	result, err = tool.Handle(context.Background(), toolRequest(map[string]interface{}{
		"source_id": bID, "target_id": aID, "type": "blocks",
	}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !isErrorResult(result) {
		t.Fatal("expected error result for cycle-closing edge")
	}
	if !strings.Contains(getResultText(result), "cycle") {
		t.Errorf("error should mention the cycle: %s", getResultText(result))
	}
}

func TestDeleteTool_Handle_RequiresCascade(t *testing.T) {
	svc := newTestService(t)
	orgID := createViaTool(t, svc, "Organization", "", "Acme")
	createViaTool(t, svc, "Project", orgID, "Core")

	tool := NewDeleteTool(svc)
	result, err := tool.Handle(context.Background(), toolRequest(map[string]interface{}{"id": orgID}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !isErrorResult(result) {
		t.Fatal("expected conflict without cascade")
	}

	result, err = tool.Handle(context.Background(), toolRequest(map[string]interface{}{
		"id": orgID, "cascade": true,
	}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("cascade delete failed: %s", getResultText(result))
	}
	if !strings.Contains(getResultText(result), "2 entities") {
		t.Errorf("result should report 2 entities deleted: %s", getResultText(result))
	}
}

func TestScaffoldTool_Handle(t *testing.T) {
	tool := NewScaffoldTool()
	result, err := tool.Handle(context.Background(), toolRequest(map[string]interface{}{
		"kind": "Requirement",
	}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	text := getResultText(result)
	if !strings.Contains(text, "## Acceptance Criteria") {
		t.Errorf("scaffold should carry Acceptance Criteria: %s", text)
	}
	if !strings.Contains(text, "status: Draft") {
		t.Errorf("scaffold should start in Draft: %s", text)
	}
}

func TestDoctorTool_Handle_Healthy(t *testing.T) {
	svc := newTestService(t)
	createViaTool(t, svc, "Organization", "", "Acme")

	tool := NewDoctorTool(svc)
	result, err := tool.Handle(context.Background(), toolRequest(nil))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !strings.Contains(getResultText(result), "No violations") {
		t.Errorf("healthy graph should report no violations: %s", getResultText(result))
	}
}

func TestAncestryTool_Handle(t *testing.T) {
	svc := newTestService(t)
	orgID := createViaTool(t, svc, "Organization", "", "Acme")
	projID := createViaTool(t, svc, "Project", orgID, "Core")

	tool := NewAncestryTool(svc)
	result, err := tool.Handle(context.Background(), toolRequest(map[string]interface{}{"id": projID}))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	text := getResultText(result)
	if !strings.Contains(text, orgID) || !strings.Contains(text, projID) {
		t.Errorf("ancestry should list both ids: %s", text)
	}
	if strings.Index(text, orgID) > strings.Index(text, projID) {
		t.Errorf("ancestry must be root-first: %s", text)
	}
}
