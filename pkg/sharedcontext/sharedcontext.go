// Package sharedcontext implements the Shared Context: a concurrent-safe
// per-session store for cross-agent technology/constraint facts, a
// write-through JSON bucket, and per-agent recommendation lists. Each
// instance is fully isolated; nothing is shared globally across instances.
package sharedcontext

import "sync"

// Recommendation is a single piece of advice an agent contributed.
type Recommendation struct {
	AgentID     string
	Description string
}

// Context is the concurrent-safe shared state one coordination session
// uses to let its agents see each other's technology/constraint/
// cross-domain findings without direct coupling.
type Context struct {
	mu sync.RWMutex

	projectType string
	techStack   []string
	techSeen    map[string]bool
	constraints []string
	constrSeen  map[string]bool

	crossDomain map[string]any

	recsByAgent map[string][]Recommendation
	agentOrder  []string
}

// New returns an empty Context.
func New() *Context {
	return &Context{
		techSeen:    make(map[string]bool),
		constrSeen:  make(map[string]bool),
		crossDomain: make(map[string]any),
		recsByAgent: make(map[string][]Recommendation),
	}
}

// SetProjectType records the project's type string.
func (c *Context) SetProjectType(t string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projectType = t
}

// ProjectType returns the recorded project type.
func (c *Context) ProjectType() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.projectType
}

// AddTechnology is set-semantics: adding an already-present technology is
// a no-op.
func (c *Context) AddTechnology(t string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.techSeen[t] {
		return
	}
	c.techSeen[t] = true
	c.techStack = append(c.techStack, t)
}

// TechStack returns the technologies added so far, in insertion order.
func (c *Context) TechStack() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.techStack...)
}

// AddConstraint is set-semantics: adding an already-present constraint is
// a no-op.
func (c *Context) AddConstraint(constraint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.constrSeen[constraint] {
		return
	}
	c.constrSeen[constraint] = true
	c.constraints = append(c.constraints, constraint)
}

// Constraints returns the constraints added so far, in insertion order.
func (c *Context) Constraints() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.constraints...)
}

// UpdateContext writes key/value into the cross-domain JSON bucket.
func (c *Context) UpdateContext(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.crossDomain[key] = value
}

// GetContext reads key from the cross-domain JSON bucket.
func (c *Context) GetContext(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.crossDomain[key]
	return v, ok
}

// StoreAgentRecommendations replaces agentID's recommendation list.
func (c *Context) StoreAgentRecommendations(agentID string, recs []Recommendation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.recsByAgent[agentID]; !exists {
		c.agentOrder = append(c.agentOrder, agentID)
	}
	c.recsByAgent[agentID] = append([]Recommendation(nil), recs...)
}

// GetAllRecommendations returns the concatenation of every agent's
// recommendations, ordered by each agent's first-contribution order.
func (c *Context) GetAllRecommendations() []Recommendation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Recommendation
	for _, agentID := range c.agentOrder {
		out = append(out, c.recsByAgent[agentID]...)
	}
	return out
}

// Clear resets all state, as if the Context were freshly constructed.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projectType = ""
	c.techStack = nil
	c.techSeen = make(map[string]bool)
	c.constraints = nil
	c.constrSeen = make(map[string]bool)
	c.crossDomain = make(map[string]any)
	c.recsByAgent = make(map[string][]Recommendation)
	c.agentOrder = nil
}
