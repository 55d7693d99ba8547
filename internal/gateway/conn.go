package gateway

// Conn is one live client connection as seen by the gateway core. The
// transport layer owns the socket; the core only pushes events into the
// buffered Events channel. A user may hold any number of connections at once.
type Conn struct {
	ID       string
	Identity int64
	Name     string
	Events   chan *Event
}

// NewConn constructs a connection handle with the given outbound buffer size.
func NewConn(id string, identity int64, name string, buffer int) *Conn {
	if buffer <= 0 {
		buffer = 64
	}
	return &Conn{
		ID:       id,
		Identity: identity,
		Name:     name,
		Events:   make(chan *Event, buffer),
	}
}

// send enqueues an event without blocking. Events to a slow consumer are
// dropped; delivery is best-effort.
func (c *Conn) send(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
