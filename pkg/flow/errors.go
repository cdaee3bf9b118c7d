package flow

import "errors"

var (
	// ErrNodeNotFound is returned when a referenced node does not exist in the graph.
	ErrNodeNotFound = errors.New("flow: node not found")

	// ErrNoEdge is returned when no edge matches from the current node,
	// indicating a graph definition gap rather than a normal completion.
	ErrNoEdge = errors.New("flow: no matching edge from node")

	// ErrChannelNotFound is returned when a node update or an initial state
	// targets a field with no declared channel.
	ErrChannelNotFound = errors.New("flow: channel not declared")

	// ErrNodeRevisit is returned when a single invocation reaches the same
	// node twice. Graphs are acyclic along any one execution.
	ErrNodeRevisit = errors.New("flow: node revisited in one invocation")

	// ErrTimeout marks a node attempt that exceeded its policy timeout.
	// Timeouts are transient: they count against the retry budget.
	ErrTimeout = errors.New("flow: node timed out")

	// ErrCriticalNode wraps a failure from a node whose policy propagates
	// errors past the graph boundary and aborts the invocation.
	ErrCriticalNode = errors.New("flow: critical node failed")
)
