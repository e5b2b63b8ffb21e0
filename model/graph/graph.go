package graph

import (
	"context"

	"github.com/finclose/finclose/model/types"
	"github.com/finclose/finclose/runtime/execution"
)

// End is the terminal sentinel. An edge pointing at End finishes the run.
const End = "__end__"

// Handler executes one named step. It mutates the state and returns log
// entries for the engine to append. Recoverable conditions are reported via
// the returned error, which the engine converts to status=error on the state;
// handlers do not panic for data problems.
type Handler func(ctx context.Context, s *execution.State) ([]execution.Message, error)

// Branch is an explicit routing key returned by a decision node's selector.
type Branch string

// Selector inspects the state after a decision step ran and picks the branch
// to follow. The returned key must exist in the node's target table;
// anything else is a configuration error that aborts the run.
type Selector func(s *execution.State) Branch

// Node is a named step plus its outgoing routing. A node routes either
// unconditionally via Next or through a Selector over Targets, never both.
type Node struct {
	Name     string
	Handler  Handler
	Next     string
	Selector Selector
	Targets  map[Branch]string
}

// IsDecision reports whether the node routes through a selector.
func (n *Node) IsDecision() bool { return n.Selector != nil }

// Graph is a directed graph of named steps with a single entry point.
// Build it with Register/Edge/ConditionalEdge/Entry, then hand it to the
// engine, which validates it once before the first run.
type Graph struct {
	Name  string
	nodes map[string]*Node
	entry string
}

// New creates an empty pipeline graph.
func New(name string) *Graph {
	return &Graph{Name: name, nodes: map[string]*Node{}}
}

// Register adds a named step.
func (g *Graph) Register(name string, handler Handler) *Graph {
	g.nodes[name] = &Node{Name: name, Handler: handler}
	return g
}

// Edge adds an unconditional edge. Use End as destination to finish the run
// after from.
func (g *Graph) Edge(from, to string) *Graph {
	if node, ok := g.nodes[from]; ok {
		node.Next = to
	}
	return g
}

// ConditionalEdge turns from into a decision node: after its handler runs,
// selector picks the branch and the target table maps it to the next node.
func (g *Graph) ConditionalEdge(from string, selector Selector, targets map[Branch]string) *Graph {
	if node, ok := g.nodes[from]; ok {
		node.Selector = selector
		node.Targets = targets
	}
	return g
}

// Entry sets the entry point.
func (g *Graph) Entry(name string) *Graph {
	g.entry = name
	return g
}

// EntryNode returns the configured entry point name.
func (g *Graph) EntryNode() string { return g.entry }

// Node returns a registered node or nil.
func (g *Graph) Node(name string) *Node { return g.nodes[name] }

// Validate checks the graph is runnable: an entry exists, every node has a
// handler and routing, and every edge points at a registered node or End.
func (g *Graph) Validate() error {
	if g.entry == "" {
		return types.NewConfigurationError("graph %q has no entry point", g.Name)
	}
	if g.nodes[g.entry] == nil {
		return types.NewConfigurationError("graph %q entry %q is not registered", g.Name, g.entry)
	}
	for name, node := range g.nodes {
		if node.Handler == nil {
			return types.NewConfigurationError("graph %q step %q has no handler", g.Name, name)
		}
		if node.IsDecision() {
			if node.Next != "" {
				return types.NewConfigurationError("graph %q step %q has both an edge and a conditional edge", g.Name, name)
			}
			if len(node.Targets) == 0 {
				return types.NewConfigurationError("graph %q step %q has a selector but no targets", g.Name, name)
			}
			for branch, to := range node.Targets {
				if err := g.checkEdge(name, to); err != nil {
					return types.NewConfigurationError("graph %q step %q branch %q: %v", g.Name, name, branch, err)
				}
			}
			continue
		}
		if node.Next == "" {
			return types.NewConfigurationError("graph %q step %q has no outgoing edge", g.Name, name)
		}
		if err := g.checkEdge(name, node.Next); err != nil {
			return types.NewConfigurationError("graph %q step %q: %v", g.Name, name, err)
		}
	}
	return nil
}

func (g *Graph) checkEdge(from, to string) error {
	if to == End {
		return nil
	}
	if g.nodes[to] == nil {
		return types.NewConfigurationError("edge from %q points at unregistered step %q", from, to)
	}
	return nil
}
