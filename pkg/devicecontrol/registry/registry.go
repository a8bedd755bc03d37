// Package registry keeps track of the links that are connected right now.
// State is in-memory only; links re-register after a restart.
package registry

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nsyszr/smsrelay/pkg/model"
)

// Caller sends a command over a live link and waits for its acknowledgement.
// A nil payload with a nil error is a void acknowledgement.
type Caller interface {
	Call(ctx context.Context, operation string, arguments interface{}) (interface{}, error)
}

// Connection is a snapshot of one registered link.
type Connection struct {
	ID             string               `json:"id"`
	Kind           model.ConnectionKind `json:"kind"`
	Metadata       map[string]string    `json:"metadata,omitempty"`
	ConnectedAt    time.Time            `json:"connectedAt"`
	LastActivityAt time.Time            `json:"lastActivityAt"`
}

// ConnectionRef is a snapshot together with the handle to reach the link.
type ConnectionRef struct {
	Connection
	Caller Caller `json:"-"`
}

// Counts summarises the registry per classification.
type Counts struct {
	Total     int `json:"total"`
	Devices   int `json:"devices"`
	Ephemeral int `json:"ephemeral"`
}

type entry struct {
	id          string
	kind        model.ConnectionKind
	metadata    map[string]string
	caller      Caller
	seq         uint64
	connectedAt time.Time

	// unix nanos, written by Touch without taking the registry lock
	lastActivity atomic.Int64
}

func (e *entry) snapshot() ConnectionRef {
	meta := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		meta[k] = v
	}
	return ConnectionRef{
		Connection: Connection{
			ID:             e.id,
			Kind:           e.kind,
			Metadata:       meta,
			ConnectedAt:    e.connectedAt,
			LastActivityAt: time.Unix(0, e.lastActivity.Load()).UTC(),
		},
		Caller: e.caller,
	}
}

// Registry is the single source of truth for live links. It is safe for
// concurrent use.
type Registry struct {
	sync.RWMutex
	entries        map[string]*entry
	nextSeq        uint64
	connectedSince time.Time
	now            func() time.Time
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Register adds a link. Registering an id that is already present replaces
// the previous record so there is never more than one entry per id.
func (r *Registry) Register(id string, kind model.ConnectionKind, metadata map[string]string, caller Caller) {
	ts := r.now()

	e := &entry{
		id:          id,
		kind:        kind,
		metadata:    metadata,
		caller:      caller,
		connectedAt: ts,
	}
	e.lastActivity.Store(ts.UnixNano())

	r.Lock()
	defer r.Unlock()

	r.nextSeq++
	e.seq = r.nextSeq
	r.entries[id] = e
	if r.connectedSince.IsZero() {
		r.connectedSince = ts
	}
}

// Touch records activity on a link. Unknown ids are ignored.
func (r *Registry) Touch(id string) {
	r.RLock()
	e, ok := r.entries[id]
	r.RUnlock()
	if ok {
		e.lastActivity.Store(r.now().UnixNano())
	}
}

// Unregister removes a link. It is a no-op for unknown ids.
func (r *Registry) Unregister(id string) {
	r.Lock()
	delete(r.entries, id)
	r.Unlock()
}

// Get returns a snapshot of one link.
func (r *Registry) Get(id string) (Connection, bool) {
	r.RLock()
	e, ok := r.entries[id]
	r.RUnlock()
	if !ok {
		return Connection{}, false
	}
	return e.snapshot().Connection, true
}

// ListByClassification returns a copy of all links of the given kind in
// registration order.
func (r *Registry) ListByClassification(kind model.ConnectionKind) []ConnectionRef {
	r.RLock()
	matched := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.kind == kind {
			matched = append(matched, e)
		}
	}
	r.RUnlock()

	return snapshots(matched)
}

// Snapshot returns a copy of every link in registration order.
func (r *Registry) Snapshot() []Connection {
	r.RLock()
	all := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		all = append(all, e)
	}
	r.RUnlock()

	refs := snapshots(all)
	out := make([]Connection, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ref.Connection)
	}
	return out
}

// Counts returns the number of links per classification.
func (r *Registry) Counts() Counts {
	devices := len(r.ListByClassification(model.ConnectionKindDevice))
	ephemeral := len(r.ListByClassification(model.ConnectionKindEphemeralClient))
	return Counts{
		Total:     devices + ephemeral,
		Devices:   devices,
		Ephemeral: ephemeral,
	}
}

// ConnectedSince returns when the first link ever registered, or the zero
// time if none did.
func (r *Registry) ConnectedSince() time.Time {
	r.RLock()
	defer r.RUnlock()
	return r.connectedSince
}

func snapshots(entries []*entry) []ConnectionRef {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})

	out := make([]ConnectionRef, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.snapshot())
	}
	return out
}
