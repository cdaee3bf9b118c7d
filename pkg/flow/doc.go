// Package flow is a directed-graph execution engine for story workflows:
// named nodes connected by conditional edges, walking a shared typed state
// from an entry node to a terminal marker.
//
// State is a flat map of named channels. Each channel declares a merge
// reducer at graph-definition time (overwrite, append, or custom), and the
// executor applies that reducer to every partial update a node returns,
// regardless of which node produced it. Nodes never mutate state in place.
//
// This package has zero imports from storyflow domain packages. Domain
// pipelines (e.g. internal/pipeline) bind their own channels, nodes, and
// edge expressions on top of it.
package flow
