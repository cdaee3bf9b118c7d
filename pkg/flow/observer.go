package flow

import (
	"log/slog"
	"sync"
	"time"
)

// WalkEventType classifies walk events for filtering and routing.
type WalkEventType string

const (
	EventNodeEnter    WalkEventType = "node_enter"
	EventNodeExit     WalkEventType = "node_exit"
	EventEdgeEvaluate WalkEventType = "edge_evaluate"
	EventTransition   WalkEventType = "transition"
	EventWalkComplete WalkEventType = "walk_complete"
	EventWalkError    WalkEventType = "walk_error"
)

// WalkEvent is a single observation from a graph invocation. Run carries
// the invocation id so concurrent invocations can be told apart.
type WalkEvent struct {
	Type    WalkEventType
	Run     string
	Node    string
	Edge    string
	Elapsed time.Duration
	Error   error
}

// WalkObserver receives events during an invocation. Single-method design
// (like http.Handler) so adding event types never breaks observers.
type WalkObserver interface {
	OnEvent(WalkEvent)
}

// WalkObserverFunc adapts a plain function to the WalkObserver interface.
type WalkObserverFunc func(WalkEvent)

func (f WalkObserverFunc) OnEvent(e WalkEvent) { f(e) }

// LogObserver writes walk events as structured slog lines.
type LogObserver struct {
	Logger *slog.Logger
}

func (o *LogObserver) OnEvent(e WalkEvent) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []slog.Attr{
		slog.String("event", string(e.Type)),
		slog.String("run", e.Run),
	}
	if e.Node != "" {
		attrs = append(attrs, slog.String("node", e.Node))
	}
	if e.Edge != "" {
		attrs = append(attrs, slog.String("edge", e.Edge))
	}
	if e.Elapsed > 0 {
		attrs = append(attrs, slog.Duration("elapsed", e.Elapsed))
	}
	if e.Error != nil {
		attrs = append(attrs, slog.String("error", e.Error.Error()))
	}

	level := slog.LevelDebug
	switch e.Type {
	case EventNodeExit, EventWalkComplete:
		level = slog.LevelInfo
	case EventWalkError:
		level = slog.LevelWarn
	}
	if e.Error != nil {
		level = slog.LevelWarn
	}
	logger.LogAttrs(nil, level, "walk", attrs...)
}

// TraceCollector accumulates walk events in memory for post-walk analysis.
// Safe for concurrent use.
type TraceCollector struct {
	mu     sync.Mutex
	events []WalkEvent
}

func (t *TraceCollector) OnEvent(e WalkEvent) {
	t.mu.Lock()
	t.events = append(t.events, e)
	t.mu.Unlock()
}

// Events returns a copy of all collected events.
func (t *TraceCollector) Events() []WalkEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]WalkEvent, len(t.events))
	copy(out, t.events)
	return out
}

// Visited returns the node names from node_enter events, in order.
func (t *TraceCollector) Visited() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, e := range t.events {
		if e.Type == EventNodeEnter {
			out = append(out, e.Node)
		}
	}
	return out
}
