package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DoneNode is the default terminal pseudo-node name. A transition
// targeting it completes the invocation.
const DoneNode = "_done"

// GraphDef is the static description of a workflow graph: channels, nodes,
// edges, and an entry point. It is data, not closures; Compile validates
// it once and rejects dangling references before anything runs.
type GraphDef struct {
	Name     string
	Entry    string
	Done     string // terminal pseudo-node, DoneNode if empty
	Channels []Channel
	Nodes    []NodeDef
	Edges    []EdgeDef

	// Config is exposed to edge When expressions as `config`. Thresholds
	// live here so tuning does not require recompiling predicates.
	Config map[string]any
}

// Graph is a compiled, runnable pipeline. Compile once, invoke many times;
// a Graph holds no per-invocation state.
type Graph struct {
	name     string
	entry    string
	done     string
	channels *channelSet
	nodes    map[string]NodeDef
	edges    map[string][]compiledEdge // from-node -> edges in definition order
	config   map[string]any
	observer WalkObserver
}

// GraphOption configures a Graph during compilation.
type GraphOption func(*Graph)

// WithObserver attaches an observer receiving walk events from every
// invocation of this graph.
func WithObserver(obs WalkObserver) GraphOption {
	return func(g *Graph) { g.observer = obs }
}

// Compile validates a GraphDef and returns a runnable Graph. It rejects:
// unknown entry, duplicate node or channel names, edges referencing
// undeclared nodes, nodes with no outgoing edge (only the done marker is
// terminal), and When expressions that fail to compile.
func Compile(def GraphDef, opts ...GraphOption) (*Graph, error) {
	channels, err := newChannelSet(def.Channels)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		name:     def.Name,
		entry:    def.Entry,
		done:     def.Done,
		channels: channels,
		nodes:    make(map[string]NodeDef, len(def.Nodes)),
		edges:    make(map[string][]compiledEdge),
		config:   def.Config,
	}
	if g.done == "" {
		g.done = DoneNode
	}
	for _, opt := range opts {
		opt(g)
	}

	for _, n := range def.Nodes {
		if n.Name == "" || n.Fn == nil {
			return nil, fmt.Errorf("flow: node %q must have a name and a function", n.Name)
		}
		if _, dup := g.nodes[n.Name]; dup {
			return nil, fmt.Errorf("flow: duplicate node %q", n.Name)
		}
		g.nodes[n.Name] = n
	}

	if _, ok := g.nodes[g.entry]; !ok {
		return nil, fmt.Errorf("%w: entry %q", ErrNodeNotFound, g.entry)
	}

	for _, e := range def.Edges {
		if _, ok := g.nodes[e.From]; !ok {
			return nil, fmt.Errorf("%w: edge %s references source %q", ErrNodeNotFound, e.ID, e.From)
		}
		if e.To != g.done {
			if _, ok := g.nodes[e.To]; !ok {
				return nil, fmt.Errorf("%w: edge %s references target %q", ErrNodeNotFound, e.ID, e.To)
			}
		}
		ce, err := compileEdge(e, g.config)
		if err != nil {
			return nil, err
		}
		g.edges[e.From] = append(g.edges[e.From], ce)
	}

	for name := range g.nodes {
		if len(g.edges[name]) == 0 {
			return nil, fmt.Errorf("%w: node %q has no outgoing edge and is not the done marker", ErrNoEdge, name)
		}
	}

	return g, nil
}

// Name returns the graph's name.
func (g *Graph) Name() string { return g.name }

// Invoke walks the graph from the entry node to the done marker and
// returns the final state. After each node, its partial update is merged
// through the channel reducers, then the node's edges are evaluated in
// definition order against the post-merge state.
//
// A non-critical node that exhausts its retry budget is recorded into its
// policy's error channel and traversal continues on whatever partial state
// exists; the invocation still reaches a terminal state. A critical node
// failure aborts with the wrapped error. Context cancellation stops
// scheduling further nodes; the in-flight node's own timeout applies.
func (g *Graph) Invoke(ctx context.Context, initial State) (State, error) {
	runID := uuid.NewString()

	state, err := g.channels.initial(initial)
	if err != nil {
		return nil, err
	}

	visited := make(map[string]bool, len(g.nodes))
	current := g.entry

	for {
		if err := ctx.Err(); err != nil {
			g.emit(WalkEvent{Type: EventWalkError, Run: runID, Node: current, Error: err})
			return state, err
		}
		if visited[current] {
			err := fmt.Errorf("%w: %q", ErrNodeRevisit, current)
			g.emit(WalkEvent{Type: EventWalkError, Run: runID, Node: current, Error: err})
			return state, err
		}
		visited[current] = true

		node := g.nodes[current]
		g.emit(WalkEvent{Type: EventNodeEnter, Run: runID, Node: current})
		start := time.Now()

		update, nodeErr := node.run(ctx, state)
		elapsed := time.Since(start)

		if nodeErr != nil {
			g.emit(WalkEvent{Type: EventNodeExit, Run: runID, Node: current, Elapsed: elapsed, Error: nodeErr})
			if node.Policy.Critical || ctx.Err() != nil {
				err := fmt.Errorf("%w: node %s: %v", ErrCriticalNode, current, nodeErr)
				if ctx.Err() != nil {
					err = ctx.Err()
				}
				g.emit(WalkEvent{Type: EventWalkError, Run: runID, Node: current, Error: err})
				return state, err
			}
			field := node.Policy.ErrorField
			if field == "" {
				field = DefaultErrorField
			}
			update = Update{field: []any{fmt.Sprintf("%s failed: %v", current, nodeErr)}}
		} else {
			g.emit(WalkEvent{Type: EventNodeExit, Run: runID, Node: current, Elapsed: elapsed})
		}

		state, err = g.channels.merge(state, update)
		if err != nil {
			g.emit(WalkEvent{Type: EventWalkError, Run: runID, Node: current, Error: err})
			return state, fmt.Errorf("node %s: %w", current, err)
		}

		next := ""
		matched := false
		for _, ce := range g.edges[current] {
			g.emit(WalkEvent{Type: EventEdgeEvaluate, Run: runID, Node: current, Edge: ce.def.ID})
			if ce.matches(state, g.config) {
				next = ce.def.To
				matched = true
				g.emit(WalkEvent{Type: EventTransition, Run: runID, Node: current, Edge: ce.def.ID})
				break
			}
		}
		if !matched {
			err := fmt.Errorf("%w: %q", ErrNoEdge, current)
			g.emit(WalkEvent{Type: EventWalkError, Run: runID, Node: current, Error: err})
			return state, err
		}

		if next == g.done {
			g.emit(WalkEvent{Type: EventWalkComplete, Run: runID, Node: current})
			return state, nil
		}
		current = next
	}
}

func (g *Graph) emit(e WalkEvent) {
	if g.observer != nil {
		g.observer.OnEvent(e)
	}
}
