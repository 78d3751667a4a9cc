package eventstream

// Visitor handler interfaces. A registered visitor receives the field-
// specific call when it implements the matching interface, falls back to
// OnChunk when it does not, and is skipped silently otherwise.
type (
	// DataHandler receives "data" events.
	DataHandler interface{ OnData(Event) }
	// NamedEventHandler receives "event" events.
	NamedEventHandler interface{ OnEvent(Event) }
	// IDHandler receives "id" events.
	IDHandler interface{ OnID(Event) }
	// RetryHandler receives "retry" events.
	RetryHandler interface{ OnRetry(Event) }
	// ChunkHandler is the catch-all for visitors without a field-specific
	// handler.
	ChunkHandler interface{ OnChunk(Event) }
)

// Dispatcher routes events to per-field subscriber callbacks and to
// registered visitors. Subscribers and visitors are invoked in registration
// order; duplicates are allowed and each registration is invoked.
type Dispatcher struct {
	subs     map[string][]func(Event)
	visitors []any
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{subs: make(map[string][]func(Event))}
}

// On appends fn to the subscriber list for the given field name.
func (d *Dispatcher) On(field string, fn func(Event)) {
	d.subs[field] = append(d.subs[field], fn)
}

// Register appends a visitor. Uniqueness is not enforced; registering the
// same visitor twice means it is invoked twice per event.
func (d *Dispatcher) Register(visitor any) {
	d.visitors = append(d.visitors, visitor)
}

// Dispatch delivers one event to field subscribers, then to each visitor.
func (d *Dispatcher) Dispatch(ev Event) {
	for _, fn := range d.subs[ev.Field] {
		fn(ev)
	}
	for _, v := range d.visitors {
		visit(v, ev)
	}
}

func visit(v any, ev Event) {
	switch ev.Field {
	case "data":
		if h, ok := v.(DataHandler); ok {
			h.OnData(ev)
			return
		}
	case "event":
		if h, ok := v.(NamedEventHandler); ok {
			h.OnEvent(ev)
			return
		}
	case "id":
		if h, ok := v.(IDHandler); ok {
			h.OnID(ev)
			return
		}
	case "retry":
		if h, ok := v.(RetryHandler); ok {
			h.OnRetry(ev)
			return
		}
	}
	if h, ok := v.(ChunkHandler); ok {
		h.OnChunk(ev)
	}
}
