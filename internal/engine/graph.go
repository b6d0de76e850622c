package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/groundwork-io/groundwork/internal/ir"
)

// Graph is the directed acyclic dependency graph of resources. Edges point
// from a resource to the resources it depends on, gathered from explicit
// depends_on entries and from ref:// markers in attribute values.
type Graph struct {
	nodes    map[string]*node
	order    []string // topological order (creation order)
	revOrder []string // reverse topological order (destruction order)
}

type node struct {
	name       string
	deps       []string // resources this node depends on
	dependents []string // resources that depend on this node
	pos        int      // declaration order, breaks ties deterministically
}

// CycleError reports a dependency cycle, naming its members.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return "dependency cycle: " + strings.Join(e.Cycle, " -> ")
}

// BuildGraph constructs the dependency graph from desired resources.
func BuildGraph(resources []*ir.Resource) (*Graph, error) {
	g := &Graph{nodes: make(map[string]*node)}

	for i, res := range resources {
		g.nodes[res.Name] = &node{name: res.Name, pos: i}
	}

	for _, res := range resources {
		n := g.nodes[res.Name]
		for _, dep := range res.DependsOn {
			if _, ok := g.nodes[dep]; ok {
				n.deps = appendUnique(n.deps, dep)
			}
		}
		for _, dep := range ir.CollectRefs(res.Attrs) {
			if dep == "count" {
				continue // count.index placeholder, not a resource
			}
			if _, ok := g.nodes[dep]; ok {
				n.deps = appendUnique(n.deps, dep)
			}
		}
	}

	return g, g.finish()
}

// BuildGraphFromState constructs the graph from state records, used when
// destroying so dependents are removed before their dependencies.
func BuildGraphFromState(records []*ir.Record) (*Graph, error) {
	g := &Graph{nodes: make(map[string]*node)}

	for i, rec := range records {
		g.nodes[rec.Name] = &node{name: rec.Name, pos: i}
	}
	for _, rec := range records {
		n := g.nodes[rec.Name]
		for _, dep := range rec.Dependencies {
			if _, ok := g.nodes[dep]; ok {
				n.deps = appendUnique(n.deps, dep)
			}
		}
	}

	return g, g.finish()
}

func (g *Graph) finish() error {
	for _, n := range g.nodes {
		for _, dep := range n.deps {
			g.nodes[dep].dependents = append(g.nodes[dep].dependents, n.name)
		}
	}

	order, err := g.topoSort()
	if err != nil {
		return err
	}
	g.order = order

	g.revOrder = make([]string, len(order))
	for i, name := range order {
		g.revOrder[len(order)-1-i] = name
	}
	return nil
}

// CreationOrder returns resource names in dependency-respecting creation
// order: every dependency precedes its dependents.
func (g *Graph) CreationOrder() []string {
	return g.order
}

// DestructionOrder returns names in reverse dependency order, safe for
// deletion.
func (g *Graph) DestructionOrder() []string {
	return g.revOrder
}

// Dependencies returns the direct dependencies of name.
func (g *Graph) Dependencies(name string) []string {
	if n, ok := g.nodes[name]; ok {
		return n.deps
	}
	return nil
}

// Dependents returns the resources that directly depend on name.
func (g *Graph) Dependents(name string) []string {
	if n, ok := g.nodes[name]; ok {
		return n.dependents
	}
	return nil
}

// topoSort is Kahn's algorithm. Among nodes whose dependencies are all
// satisfied, declaration order decides, so the result is deterministic for a
// given document.
func (g *Graph) topoSort() ([]string, error) {
	remaining := make(map[string]int, len(g.nodes))
	for name, n := range g.nodes {
		remaining[name] = len(n.deps)
	}

	byPos := make([]*node, 0, len(g.nodes))
	for _, n := range g.nodes {
		byPos = append(byPos, n)
	}
	sortNodes(byPos)

	sorted := make([]string, 0, len(g.nodes))
	done := make(map[string]bool, len(g.nodes))
	for len(sorted) < len(g.nodes) {
		progressed := false
		for _, n := range byPos {
			if done[n.name] || remaining[n.name] != 0 {
				continue
			}
			done[n.name] = true
			sorted = append(sorted, n.name)
			for _, dep := range n.dependents {
				remaining[dep]--
			}
			progressed = true
		}
		if !progressed {
			return nil, &CycleError{Cycle: g.findCycle(done)}
		}
	}

	return sorted, nil
}

// findCycle walks dependency edges among unsorted nodes until a name repeats.
func (g *Graph) findCycle(done map[string]bool) []string {
	var start *node
	for _, n := range g.nodes {
		if !done[n.name] && (start == nil || n.pos < start.pos) {
			start = n
		}
	}
	if start == nil {
		return nil
	}

	visited := make(map[string]int)
	path := []string{}
	cur := start
	for {
		if i, seen := visited[cur.name]; seen {
			return append(path[i:], cur.name)
		}
		visited[cur.name] = len(path)
		path = append(path, cur.name)

		var next *node
		for _, dep := range cur.deps {
			if n := g.nodes[dep]; !done[dep] && (next == nil || n.pos < next.pos) {
				next = n
			}
		}
		if next == nil {
			return path // should not happen: unsorted nodes always have a pending dep
		}
		cur = next
	}
}

func sortNodes(nodes []*node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].pos < nodes[j].pos })
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// Dot renders the graph in Graphviz format.
func (g *Graph) Dot() string {
	var b strings.Builder
	b.WriteString("digraph resources {\n")
	for _, name := range g.order {
		fmt.Fprintf(&b, "  %q;\n", name)
		for _, dep := range g.nodes[name].deps {
			fmt.Fprintf(&b, "  %q -> %q;\n", name, dep)
		}
	}
	b.WriteString("}\n")
	return b.String()
}
