package mcp

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func TestConvertSchemaRoundTripsObjectShape(t *testing.T) {
	schema := mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]any{
			"path": map[string]any{"type": "string"},
		},
		Required: []string{"path"},
	}

	out := convertSchema(schema)
	if out["type"] != "object" {
		t.Fatalf("expected type=object, got %v", out["type"])
	}
	props, ok := out["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected properties map, got %T", out["properties"])
	}
	if _, ok := props["path"]; !ok {
		t.Fatalf("expected path property to survive round trip: %+v", props)
	}
}

func TestRemoteToolExposesNameAndDescription(t *testing.T) {
	rt := &remoteTool{name: "search_files", description: "search the repository"}
	if rt.ID() != "search_files" {
		t.Fatalf("unexpected ID: %s", rt.ID())
	}
	if rt.Description() != "search the repository" {
		t.Fatalf("unexpected description: %s", rt.Description())
	}
}
