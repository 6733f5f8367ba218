package toolkernel_test

import (
	"context"
	"testing"

	"github.com/kadirpekel/coderkernel/pkg/kernelerr"
	"github.com/kadirpekel/coderkernel/pkg/toolkernel"
)

type stubTool struct {
	id string
}

func (s stubTool) ID() string          { return s.id }
func (s stubTool) Description() string { return "stub: " + s.id }
func (s stubTool) Schema() map[string]any { return nil }
func (s stubTool) Call(ctx context.Context, args map[string]any) (toolkernel.Result, error) {
	return toolkernel.Result{Content: "ok"}, nil
}

type alwaysAllow struct{}

func (alwaysAllow) HasPermission(string) bool { return true }

type alwaysDeny struct{}

func (alwaysDeny) HasPermission(string) bool { return false }

func TestRegisterUniqueness(t *testing.T) {
	r := toolkernel.NewRegistry()
	if err := r.Register(stubTool{id: "a"}, toolkernel.Metadata{Enabled: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := r.Register(stubTool{id: "a"}, toolkernel.Metadata{Enabled: true})
	if !kernelerr.Is(err, kernelerr.AlreadyExists) {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
	if r.Count() != 1 {
		t.Fatalf("expected count 1, got %d", r.Count())
	}
}

func TestReplacePreservesMetadata(t *testing.T) {
	r := toolkernel.NewRegistry()
	_ = r.Register(stubTool{id: "a"}, toolkernel.Metadata{Enabled: true, RequiredPermissions: []string{"x"}})
	old, err := r.Replace("a", stubTool{id: "a-v2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if old.ID() != "a" {
		t.Fatalf("expected old tool id 'a', got %s", old.ID())
	}
	_, meta, _ := r.Get("a")
	if !meta.Enabled || len(meta.RequiredPermissions) != 1 {
		t.Fatalf("metadata not preserved: %+v", meta)
	}
}

func TestOverrideWithFallback(t *testing.T) {
	r := toolkernel.NewRegistry()
	_ = r.Register(stubTool{id: "a"}, toolkernel.Metadata{Enabled: true})
	if err := r.Override("a", stubTool{id: "a-new"}, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fallback, _, ok := r.Get("a_fallback")
	if !ok || fallback.ID() != "a" {
		t.Fatalf("expected fallback tool to be the original")
	}
}

func TestEnabledRequiresExistenceMetadataAndPermission(t *testing.T) {
	r := toolkernel.NewRegistry()
	_ = r.Register(stubTool{id: "a"}, toolkernel.Metadata{Enabled: true})
	if !r.Enabled("a", alwaysAllow{}) {
		t.Fatalf("expected enabled")
	}
	if r.Enabled("a", alwaysDeny{}) {
		t.Fatalf("expected disabled when permission denied")
	}
	if r.Enabled("missing", alwaysAllow{}) {
		t.Fatalf("expected disabled for unknown tool")
	}
}

func TestProviderFilter(t *testing.T) {
	r := toolkernel.NewRegistry()
	_ = r.Register(stubTool{id: "a"}, toolkernel.Metadata{ProviderID: "p1"})
	r.SetProviderFilter([]string{"p1"})
	if !r.Available("a", "") {
		t.Fatalf("expected available: provider in filter")
	}
	r.SetProviderFilter([]string{"p2"})
	if r.Available("a", "") {
		t.Fatalf("expected unavailable: provider not in filter")
	}
	if !r.Available("a", "p2") {
		t.Fatalf("expected available: requester provider in filter")
	}
}

func TestFromPluginRefusesLocalExecution(t *testing.T) {
	pt := toolkernel.FromPlugin(toolkernel.PluginDescriptor{Name: "remote-tool", ProviderID: "mcp1"})
	_, err := pt.Call(context.Background(), nil)
	if err != toolkernel.ErrPluginNotLocallyExecutable {
		t.Fatalf("expected ErrPluginNotLocallyExecutable, got %v", err)
	}
	if _, ok := toolkernel.IsPluginAdapter(pt); !ok {
		t.Fatalf("expected IsPluginAdapter to recognize plugin tool")
	}
}
