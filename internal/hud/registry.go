// Package hud composes the HUD status line(s) the Output Writer paints
// at the bottom of the screen from a registry of independent modules,
// and resolves mouse clicks against a spatial button registry.
package hud

import (
	"sort"
	"strings"
	"sync"
	"time"

	"voiceterm/internal/writer"
)

// Module is one independently-rendered segment of the HUD status
// line — voice mode, recording indicator, latency badge, working
// directory, and so on. Modules are joined with " | " in priority
// order; when the joined line would overflow the terminal width, the
// lowest-priority modules are dropped first (mirroring the teacher's
// "drop help, then right-align, then hard-truncate" status bar
// fallback, generalized from a fixed field list to a registry).
type Module struct {
	ID   string
	// Priority: higher survives width pressure longer. Ties break by
	// registration order.
	Priority int
	// MinWidth: if Render()'s display width is below this, the module
	// renders as empty and is skipped (e.g. a latency badge with
	// nothing worth showing yet).
	MinWidth int
	// TickInterval is the module's preferred re-render cadence. The
	// event loop does not read it: ComposeLine runs on every loop tick,
	// so Render is re-invoked each tick whatever this is set to.
	TickInterval time.Duration
	// Render produces this module's current text. Called from the
	// single event-loop thread; must not block.
	Render func() string
}

// Registry holds the set of registered HUD modules and composes them
// into a single status line sized to fit a given column budget.
type Registry struct {
	mu      sync.Mutex
	modules map[string]Module
	order   []string // registration order, for stable tie-breaking
}

// NewRegistry builds an empty module registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]Module)}
}

// Register adds or replaces a module by ID.
func (r *Registry) Register(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[m.ID]; !exists {
		r.order = append(r.order, m.ID)
	}
	r.modules[m.ID] = m
}

// Unregister removes a module by ID, if present.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[id]; !exists {
		return
	}
	delete(r.modules, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// ComposeLine renders every registered module, drops modules below
// their MinWidth, then joins the survivors with " | " in priority
// order (highest first), dropping lowest-priority modules one at a
// time until the line fits cols, finally hard-truncating (display-
// width safe) if even the single highest-priority module doesn't fit.
func (r *Registry) ComposeLine(cols int) string {
	r.mu.Lock()
	type rendered struct {
		priority int
		seq      int
		text     string
	}
	var segs []rendered
	for i, id := range r.order {
		m := r.modules[id]
		text := m.Render()
		if writer.DisplayWidth(text) < m.MinWidth {
			continue
		}
		if text == "" {
			continue
		}
		segs = append(segs, rendered{priority: m.Priority, seq: i, text: text})
	}
	r.mu.Unlock()

	sort.SliceStable(segs, func(i, j int) bool {
		if segs[i].priority != segs[j].priority {
			return segs[i].priority > segs[j].priority
		}
		return segs[i].seq < segs[j].seq
	})

	for len(segs) > 0 {
		texts := make([]string, len(segs))
		for i, s := range segs {
			texts[i] = s.text
		}
		line := strings.Join(texts, " | ")
		if writer.DisplayWidth(line) <= cols || len(segs) == 1 {
			if writer.DisplayWidth(line) > cols {
				line = writer.Truncate(line, cols)
			}
			return line
		}
		segs = segs[:len(segs)-1]
	}
	return ""
}
