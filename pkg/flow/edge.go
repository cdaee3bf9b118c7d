package flow

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// EdgeDef is a transition between two nodes. Edges from a node are
// evaluated in definition order against the post-merge state; the first
// match wins, so an ordered edge list is the graph's branch table.
//
// A condition is either an expr-lang When expression over {state, config}
// or a Go Cond predicate. Both must be pure and synchronous: no I/O, same
// answer for the same state. An edge with neither is unconditional and
// usually closes a branch table as its fallback.
type EdgeDef struct {
	ID   string
	Name string
	From string
	To   string

	// When is an expr-lang boolean expression compiled once at graph
	// compile time, e.g. `len(state.gaps) > 0 && config.min_gaps <= 5`.
	When string

	// Cond is the Go alternative for predicates awkward to express in an
	// expression, evaluated against the post-merge state.
	Cond func(s State) bool
}

// compiledEdge pairs an EdgeDef with its compiled When program.
type compiledEdge struct {
	def     EdgeDef
	program *vm.Program
}

// compileEdge validates the condition shape and compiles When, if any.
func compileEdge(def EdgeDef, config map[string]any) (compiledEdge, error) {
	ce := compiledEdge{def: def}
	if def.When != "" && def.Cond != nil {
		return ce, fmt.Errorf("flow: edge %s declares both When and Cond", def.ID)
	}
	if def.When == "" {
		return ce, nil
	}
	program, err := expr.Compile(def.When,
		expr.Env(map[string]any{"state": map[string]any{}, "config": config}),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return ce, fmt.Errorf("flow: edge %s: compile %q: %w", def.ID, def.When, err)
	}
	ce.program = program
	return ce, nil
}

// matches evaluates the edge condition against the post-merge state.
// Expression evaluation errors are treated as a non-match: a partial state
// after a degraded node must not derail edge selection, the fallback edge
// handles it.
func (ce compiledEdge) matches(s State, config map[string]any) bool {
	switch {
	case ce.program != nil:
		out, err := expr.Run(ce.program, map[string]any{
			"state":  map[string]any(s),
			"config": config,
		})
		if err != nil {
			return false
		}
		b, ok := out.(bool)
		return ok && b
	case ce.def.Cond != nil:
		return ce.def.Cond(s)
	default:
		return true
	}
}
