// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on flows.py's iperf_flow.instances (a weakref.WeakSet) plus
// get_instances/run/plot/stop's `flows == 'all'` convention. spec.md §9
// directs replacing the weak set with a registry of dense integer
// handles and an explicit destroy call.

package flowfleet

import "sync"

// FlowID is a dense handle identifying a [*Flow] within a [*Registry].
type FlowID int

// Registry tracks live flows by handle, replacing the source's weak
// set: a flow's lifetime is exactly the interval between Add and
// Remove rather than being governed by garbage collection.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	next  FlowID
	flows map[FlowID]*Flow
}

// NewRegistry returns an empty [*Registry].
func NewRegistry() *Registry {
	return &Registry{flows: make(map[FlowID]*Flow)}
}

// Add assigns f a new [FlowID] and tracks it.
func (r *Registry) Add(f *Flow) FlowID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	r.flows[id] = f
	f.id = id
	return id
}

// Remove untracks the flow with the given id. Remove is a no-op if id
// is not tracked.
func (r *Registry) Remove(id FlowID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.flows, id)
}

// Get returns the flow with the given id, or (nil, false) if it is not
// tracked.
func (r *Registry) Get(id FlowID) (*Flow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flows[id]
	return f, ok
}

// Instances returns every currently tracked flow, in unspecified
// order. This is the registry-backed equivalent of the source's
// `iperf_flow.get_instances()`, used wherever a fleet operation is
// invoked with flows="all".
func (r *Registry) Instances() []*Flow {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Flow, 0, len(r.flows))
	for _, f := range r.flows {
		out = append(out, f)
	}
	return out
}

// Len reports the number of currently tracked flows.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flows)
}
