// Package toolkernel implements the Tool Registry: register/replace/
// override/provider-filter/enable/plugin-adapter semantics over a set of
// externally-provided capabilities invocable by agents.
//
// The Tool interface hierarchy (base Tool, synchronous CallableTool,
// Predicate combinators for context-sensitive availability, Definition
// for LLM function-calling schemas) follows the layering of the teacher's
// own pkg/tool package, simplified: the kernel's Tool is an MCP/LSP-style
// external capability rather than an in-process agent callback, so its
// Context is a plain context.Context instead of the full agent
// CallbackContext hierarchy.
package toolkernel

import (
	"context"
	"fmt"
	"sync"

	"github.com/kadirpekel/coderkernel/pkg/kernelerr"
	"github.com/kadirpekel/coderkernel/pkg/registry"
)

// Tool is the base capability surface every tool exposes.
type Tool interface {
	ID() string
	Description() string
}

// CallableTool extends Tool with synchronous execution.
type CallableTool interface {
	Tool
	Call(ctx context.Context, args map[string]any) (Result, error)
	Schema() map[string]any
}

// Result is the output of a tool execution.
type Result struct {
	Content  any
	Error    string
	Metadata map[string]any
}

// Metadata is registry-owned bookkeeping about a registered tool,
// separate from the Tool implementation itself so that Replace can
// preserve it across a swap.
type Metadata struct {
	ProviderID          string
	Enabled             bool
	RequiredPermissions []string
}

// Predicate determines whether a tool is available in a given context.
// Combinators mirror the teacher's AllowAll/DenyAll/Combine/Or/Not.
type Predicate func(tool Tool) bool

func AllowAll() Predicate { return func(Tool) bool { return true } }
func DenyAll() Predicate  { return func(Tool) bool { return false } }

func Combine(predicates ...Predicate) Predicate {
	return func(t Tool) bool {
		for _, p := range predicates {
			if !p(t) {
				return false
			}
		}
		return true
	}
}

func Or(predicates ...Predicate) Predicate {
	return func(t Tool) bool {
		for _, p := range predicates {
			if p(t) {
				return true
			}
		}
		return false
	}
}

func Not(p Predicate) Predicate {
	return func(t Tool) bool { return !p(t) }
}

// Definition is an LLM-facing function-calling schema for a tool.
type Definition struct {
	ID          string
	Description string
	Parameters  map[string]any
}

// ToDefinition converts a Tool into a Definition, pulling Schema() when
// the tool is a CallableTool.
func ToDefinition(t Tool) Definition {
	def := Definition{ID: t.ID(), Description: t.Description()}
	if ct, ok := t.(CallableTool); ok {
		def.Parameters = ct.Schema()
	}
	return def
}

// PluginDescriptor describes an externally-owned tool advertised by a
// provider (e.g. an MCP server) that this process cannot execute locally.
type PluginDescriptor struct {
	Name        string
	Description string
	InputSchema map[string]any
	ProviderID  string
}

// ErrPluginNotLocallyExecutable is returned by a plugin-adapted tool's
// Call: execution must be routed to the owning provider, never run
// in-process.
var ErrPluginNotLocallyExecutable = fmt.Errorf("tool is a plugin adapter: execution must be routed to its provider")

// pluginTool adapts a PluginDescriptor into a CallableTool whose Call
// always refuses locally; a provider-aware caller is expected to detect
// this discriminant (via IsPluginAdapter) and dispatch through its own
// transport instead of invoking Call.
type pluginTool struct {
	desc PluginDescriptor
}

func (p *pluginTool) ID() string          { return p.desc.Name }
func (p *pluginTool) Description() string { return p.desc.Description }
func (p *pluginTool) Schema() map[string]any {
	return p.desc.InputSchema
}
func (p *pluginTool) Call(ctx context.Context, args map[string]any) (Result, error) {
	return Result{}, ErrPluginNotLocallyExecutable
}

// IsPluginAdapter reports whether t was produced by FromPlugin.
func IsPluginAdapter(t Tool) (PluginDescriptor, bool) {
	pt, ok := t.(*pluginTool)
	if !ok {
		return PluginDescriptor{}, false
	}
	return pt.desc, true
}

// FromPlugin adapts an external plugin descriptor into a Tool.
func FromPlugin(desc PluginDescriptor) CallableTool {
	return &pluginTool{desc: desc}
}

// entry pairs a tool with its registry-owned metadata.
type entry struct {
	tool Tool
	meta Metadata
}

// Registry holds tools keyed by ID plus their metadata (via the shared
// registry.BaseRegistry, which also enforces registration uniqueness),
// and an optional provider filter restricting which providers' tools are
// considered available.
type Registry struct {
	entries        *registry.BaseRegistry[entry]
	mu             sync.RWMutex    // guards providerFilter only
	providerFilter map[string]bool // nil = all providers allowed
}

// NewRegistry returns an empty Registry with no provider filter.
func NewRegistry() *Registry {
	return &Registry{entries: registry.NewBaseRegistry[entry]()}
}

// Register inserts a new tool. Fails if a tool with the same ID already
// exists (registry uniqueness invariant, §8.1.1).
func (r *Registry) Register(t Tool, meta Metadata) error {
	if err := r.entries.Register(t.ID(), entry{tool: t, meta: meta}); err != nil {
		return kernelerr.New("toolkernel.Register", kernelerr.AlreadyExists)
	}
	return nil
}

// Replace swaps the tool registered under id for newTool while preserving
// its existing metadata (enabled + required permissions), returning the
// tool that was replaced.
func (r *Registry) Replace(id string, newTool Tool) (Tool, error) {
	e, ok := r.entries.Get(id)
	if !ok {
		return nil, kernelerr.New("toolkernel.Replace", kernelerr.NotFound)
	}
	old := e.tool
	r.entries.Set(id, entry{tool: newTool, meta: e.meta})
	return old, nil
}

// Override replaces the tool registered under id with newTool. If
// fallbackToOld is true, the prior tool is re-registered under
// id+"_fallback" rather than discarded, enabling graceful degradation
// back to it later.
func (r *Registry) Override(id string, newTool Tool, fallbackToOld bool) error {
	e, ok := r.entries.Get(id)
	if !ok {
		return kernelerr.New("toolkernel.Override", kernelerr.NotFound)
	}
	if fallbackToOld {
		r.entries.Set(id+"_fallback", e)
	}
	r.entries.Set(id, entry{tool: newTool, meta: e.meta})
	return nil
}

// SetProviderFilter restricts Enabled/Available checks to the given
// provider set. A nil set means all providers are allowed.
func (r *Registry) SetProviderFilter(providers []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if providers == nil {
		r.providerFilter = nil
		return
	}
	set := make(map[string]bool, len(providers))
	for _, p := range providers {
		set[p] = true
	}
	r.providerFilter = set
}

// Available reports whether the tool is visible under the current
// provider filter: always true with no filter, otherwise true iff the
// tool's own provider (or the requesting provider, when given) is in the
// allowed set.
func (r *Registry) Available(id string, requesterProvider string) bool {
	e, ok := r.entries.Get(id)
	if !ok {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.providerFilter == nil {
		return true
	}
	return r.providerFilter[e.meta.ProviderID] || (requesterProvider != "" && r.providerFilter[requesterProvider])
}

// PermissionChecker evaluates whether an agent has permission to invoke
// a tool id; its implementation is external to this registry per spec
// §4.5. pkg/permission.Engine does not satisfy it directly: its
// CheckPermission takes an agent ID and returns a Level.
type PermissionChecker interface {
	HasPermission(toolID string) bool
}

// Enabled reports whether the tool exists, is metadata-enabled, and the
// agent has permission to invoke it.
func (r *Registry) Enabled(id string, agent PermissionChecker) bool {
	e, ok := r.entries.Get(id)
	if !ok || !e.meta.Enabled {
		return false
	}
	if agent == nil {
		return false
	}
	return agent.HasPermission(id)
}

// Get returns the tool and its metadata.
func (r *Registry) Get(id string) (Tool, Metadata, bool) {
	e, ok := r.entries.Get(id)
	return e.tool, e.meta, ok
}

// List returns every registered tool.
func (r *Registry) List() []Tool {
	entries := r.entries.List()
	out := make([]Tool, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.tool)
	}
	return out
}

// Count returns the number of distinct registered tool IDs.
func (r *Registry) Count() int {
	return r.entries.Count()
}
