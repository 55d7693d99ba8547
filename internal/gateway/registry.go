package gateway

import "sync"

// Registry maps a user identity to the set of connections currently open for
// it. A user is present while its set is non-empty.
type Registry struct {
	mu    sync.Mutex
	conns map[int64]map[string]*Conn
}

// NewRegistry constructs an empty session registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[int64]map[string]*Conn)}
}

// Register records a connection for its identity. Returns true when this is
// the identity's first live connection.
func (r *Registry) Register(c *Conn) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.conns[c.Identity]
	if set == nil {
		set = make(map[string]*Conn)
		r.conns[c.Identity] = set
	}
	first = len(set) == 0
	set[c.ID] = c
	return first
}

// Unregister removes a connection. Returns true when the identity's set
// became empty by this call. Unregistering an unknown connection is a no-op
// and never reports the set as newly emptied, so disconnect cleanup stays
// idempotent.
func (r *Registry) Unregister(c *Conn) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.conns[c.Identity]
	if set == nil {
		return false
	}
	if _, ok := set[c.ID]; !ok {
		return false
	}
	delete(set, c.ID)
	if len(set) == 0 {
		delete(r.conns, c.Identity)
		return true
	}
	return false
}

// Connections returns a snapshot of the identity's live connections.
func (r *Registry) Connections(identity int64) []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.conns[identity]
	if len(set) == 0 {
		return nil
	}
	out := make([]*Conn, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}
