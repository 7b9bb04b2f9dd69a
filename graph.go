package trellis

// UnsatisfiedDependencies returns every required key that has no binding in
// the scope chain of a binding needing it, mapped to those bindings. known
// holds keys satisfied from outside the tree, such as a parent injector's.
// An empty result means the tree is complete.
func UnsatisfiedDependencies(tree *BindingTree, known map[Key]struct{}) map[Key][]Requester {
	missing := make(map[Key][]Requester)
	collectUnsatisfied(tree, nil, known, missing)

	return missing
}

func collectUnsatisfied(node *BindingTree, scope []Scope, upper map[Key]struct{}, missing map[Key][]Requester) {
	local := node.Get()

	known := make(map[Key]struct{}, len(upper)+len(local))
	for k := range upper {
		known[k] = struct{}{}
	}

	for k := range local {
		known[k] = struct{}{}
	}

	for _, key := range local.Keys() {
		binding := local[key].binding
		if binding == nil {
			continue
		}

		seen := make(map[Key]bool)

		for _, dep := range binding.dependencies {
			if !dep.Required || seen[dep.Key] {
				continue
			}

			if _, ok := known[dep.Key]; ok {
				continue
			}

			seen[dep.Key] = true
			missing[dep.Key] = append(missing[dep.Key], Requester{Key: key, Binding: binding, Scope: scope})
		}
	}

	for _, s := range sortedScopes(node.Children()) {
		collectUnsatisfied(node.Child(s), nextPath(scope, s), known, missing)
	}
}

// CyclicDependencies returns every cycle of the tree, each one starting at
// the key where the loop closes. Cycles cannot span scopes, so each node is
// scanned on its own, skipping the keys its ancestors already proved acyclic.
func CyclicDependencies(tree *BindingTree) [][]Key {
	var cycles [][]Key

	collectCycles(tree, map[Key]bool{}, &cycles)

	return cycles
}

func collectCycles(node *BindingTree, verified map[Key]bool, cycles *[][]Key) {
	local := node.Get()

	visited := make(map[Key]bool, len(verified)+len(local))
	for k := range verified {
		// a local rebinding must be scanned again
		if _, ok := local[k]; !ok {
			visited[k] = true
		}
	}

	g := &dependencyGraph{
		bindings: local,
		visited:  visited,
		visiting: make(map[Key]int),
	}

	for _, key := range local.Keys() {
		if !g.visited[key] {
			g.visit(key)
		}
	}

	*cycles = append(*cycles, g.cycles...)

	for _, s := range sortedScopes(node.Children()) {
		collectCycles(node.Child(s), g.visited, cycles)
	}
}

// dependencyGraph is a depth-first scan of one scope's bindings.
// visited keys are fully explored and acyclic, visiting keys are on the
// current path.
type dependencyGraph struct {
	bindings BindingTable
	visited  map[Key]bool
	visiting map[Key]int // key -> index in path
	path     []Key
	cycles   [][]Key
}

// visit performs DFS traversal.
func (g *dependencyGraph) visit(key Key) {
	binding := g.bindings[key].binding
	if binding == nil {
		// unsatisfied or bound in an upper scope, either way a dead end here
		g.visited[key] = true

		return
	}

	if i, ok := g.visiting[key]; ok {
		// path is a -> b -> c -> d -> c, the cycle is c -> d
		cycle := make([]Key, len(g.path)-i)
		copy(cycle, g.path[i:])
		g.cycles = append(g.cycles, cycle)

		return
	}

	g.visiting[key] = len(g.path)
	g.path = append(g.path, key)

	for _, dep := range binding.dependencies {
		if dep.Implicit || g.visited[dep.Key] {
			continue
		}

		g.visit(dep.Key)
	}

	g.path = g.path[:len(g.path)-1]
	delete(g.visiting, key)
	g.visited[key] = true
}
