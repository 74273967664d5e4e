package workflow

import "fmt"

// validateDef checks the structural invariants required of a definition
// before any state is persisted: unique node ids, dependencies that
// resolve to existing nodes, and an acyclic dependency graph. This is the
// gate that makes starting a workflow reject a cycle before persisting
// anything.
func validateDef(def *Def) error {
	if def.ID == "" {
		return &EngineError{Message: "workflow id is required", Code: CodeValidation}
	}
	if len(def.Nodes) == 0 {
		return &EngineError{Message: "workflow must declare at least one node", Code: CodeValidation}
	}

	seen := make(map[string]bool, len(def.Nodes))
	for _, n := range def.Nodes {
		if n.ID == "" {
			return &EngineError{Message: "node id cannot be empty", Code: CodeValidation}
		}
		if seen[n.ID] {
			return &EngineError{Message: "duplicate node id: " + n.ID, Code: CodeValidation}
		}
		seen[n.ID] = true
	}

	for _, n := range def.Nodes {
		for _, dep := range n.Dependencies {
			if !seen[dep] {
				return &EngineError{
					Message: fmt.Sprintf("node %s depends on unknown node %s", n.ID, dep),
					Code:    CodeValidation,
				}
			}
		}
	}

	if cyclePath := findCycle(def); cyclePath != nil {
		return &EngineError{
			Message: fmt.Sprintf("dependency cycle detected: %v", cyclePath),
			Code:    CodeCycle,
		}
	}

	return nil
}

// findCycle runs a depth-first search over the dependency graph (edges
// point from a node to its dependencies) and returns the cycle as a path of
// node ids, or nil if the graph is acyclic.
func findCycle(def *Def) []string {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS stack
		black = 2 // fully explored
	)

	color := make(map[string]int, len(def.Nodes))
	for _, n := range def.Nodes {
		color[n.ID] = white
	}

	var path []string
	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = gray
		path = append(path, id)

		n, _ := def.NodeByID(id)
		for _, dep := range n.Dependencies {
			switch color[dep] {
			case gray:
				// Found the back-edge; trim path to start at the cycle's head.
				start := 0
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				cycle := append([]string{}, path[start:]...)
				return append(cycle, dep)
			case white:
				if cyc := visit(dep); cyc != nil {
					return cyc
				}
			}
		}

		color[id] = black
		path = path[:len(path)-1]
		return nil
	}

	for _, n := range def.Nodes {
		if color[n.ID] == white {
			if cyc := visit(n.ID); cyc != nil {
				return cyc
			}
		}
	}
	return nil
}
