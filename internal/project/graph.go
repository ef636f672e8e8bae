package project

import (
	"fmt"
	"sort"

	"github.com/opencohort/runner/internal/joberrors"
)

// graph is the dependency graph over actions: an edge dep -> action means
// action declares dep in its needs list.
type graph struct {
	predecessors map[string][]string
}

// buildGraph constructs the dependency graph and rejects cycles and needs
// entries that reference unknown actions.
func buildGraph(p *Project) (*graph, error) {
	g := &graph{predecessors: make(map[string][]string, len(p.Actions))}

	for id, action := range p.Actions {
		for _, dep := range action.Needs {
			if _, ok := p.Actions[dep]; !ok {
				return nil, joberrors.InvalidVariable(fmt.Sprintf("action %q needs unknown action %q", id, dep))
			}
			g.predecessors[id] = append(g.predecessors[id], dep)
		}
		sort.Strings(g.predecessors[id])
	}

	if cycle := g.findCycle(); cycle != "" {
		return nil, joberrors.DependencyCycle(cycle)
	}

	return g, nil
}

// Predecessors returns the direct dependencies of an action, sorted.
func (g *graph) Predecessors(id string) []string {
	return g.predecessors[id]
}

// findCycle returns a description of any dependency cycle.
func (g *graph) findCycle() string {
	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[string]int)

	var visit func(id string) string
	visit = func(id string) string {
		switch state[id] {
		case inProgress:
			return id
		case done:
			return ""
		}
		state[id] = inProgress
		for _, dep := range g.predecessors[id] {
			if hit := visit(dep); hit != "" {
				return hit
			}
		}
		state[id] = done
		return ""
	}

	ids := make([]string, 0, len(g.predecessors))
	for id := range g.predecessors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if hit := visit(id); hit != "" {
			return fmt.Sprintf("dependency cycle through action %q", hit)
		}
	}
	return ""
}
