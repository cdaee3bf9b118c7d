package flow

import (
	"fmt"
	"reflect"
)

// State is the shared workflow state: a mapping from channel name to value,
// scoped to one story. Nodes receive it read-only and return partial
// updates; the executor owns all mutation through channel reducers.
type State map[string]any

// Update is the partial state a node returns: only the channels it changes.
type Update map[string]any

// Clone returns a shallow copy of the state. Channel values are shared;
// reducers must treat old values as immutable and return fresh ones.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Reducer merges an update value into a channel's current value.
// Reducers are total: old may be the channel's declared default (including
// nil) and the reducer must still produce a well-formed result.
type Reducer func(old, new any) any

// Overwrite is the last-writer-wins reducer.
func Overwrite(old, new any) any { return new }

// Append concatenates sequences. Both old and new are normalized to []any
// (a nil value becomes the empty sequence, a scalar becomes a one-element
// sequence), so the reducer is total over defaults. Used for error and
// event logs.
func Append(old, new any) any {
	out := toSlice(old)
	return append(out, toSlice(new)...)
}

// toSlice normalizes a channel value to []any for the append reducer.
func toSlice(v any) []any {
	if v == nil {
		return nil
	}
	if s, ok := v.([]any); ok {
		out := make([]any, len(s))
		copy(out, s)
		return out
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []any{v}
}

// Channel declares one state field: its name, merge reducer, and default
// value. The channel set is fixed at graph-definition time and applied
// identically regardless of which node produced an update.
type Channel struct {
	Name    string
	Reduce  Reducer
	Default any
}

// channelSet indexes channels by name and applies reducers.
type channelSet struct {
	byName map[string]Channel
	names  []string
}

func newChannelSet(channels []Channel) (*channelSet, error) {
	cs := &channelSet{byName: make(map[string]Channel, len(channels))}
	for _, c := range channels {
		if c.Name == "" {
			return nil, fmt.Errorf("flow: channel with empty name")
		}
		if _, dup := cs.byName[c.Name]; dup {
			return nil, fmt.Errorf("flow: duplicate channel %q", c.Name)
		}
		if c.Reduce == nil {
			c.Reduce = Overwrite
		}
		cs.byName[c.Name] = c
		cs.names = append(cs.names, c.Name)
	}
	return cs, nil
}

// initial builds the starting state: channel defaults overlaid with the
// caller-provided seed. Seeding an undeclared channel is rejected before
// any node runs.
func (cs *channelSet) initial(seed State) (State, error) {
	s := make(State, len(cs.names))
	for _, name := range cs.names {
		if d := cs.byName[name].Default; d != nil {
			s[name] = d
		}
	}
	for k, v := range seed {
		c, ok := cs.byName[k]
		if !ok {
			return nil, fmt.Errorf("%w: %q in initial state", ErrChannelNotFound, k)
		}
		s[k] = c.Reduce(s[k], v)
	}
	return s, nil
}

// merge applies a node's partial update to the state through each target
// channel's declared reducer, returning a new state value.
func (cs *channelSet) merge(s State, u Update) (State, error) {
	if len(u) == 0 {
		return s, nil
	}
	out := s.Clone()
	for k, v := range u {
		c, ok := cs.byName[k]
		if !ok {
			return nil, fmt.Errorf("%w: %q in node update", ErrChannelNotFound, k)
		}
		out[k] = c.Reduce(out[k], v)
	}
	return out, nil
}
