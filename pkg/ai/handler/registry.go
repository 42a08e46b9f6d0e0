package handler

import (
	"ai-insights-be/pkg/ai/intent"
)

// Registry keeps handlers in registration order and a precomputed
// intent-type dispatch table built from that order.
type Registry struct {
	handlers []Handler
	table    map[intent.Type]Handler
}

func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{
		handlers: handlers,
		table:    make(map[intent.Type]Handler, len(intent.AllTypes)),
	}
	for _, t := range intent.AllTypes {
		if h := r.Scan(intent.Intent{Type: t}); h != nil {
			r.table[t] = h
		}
	}
	return r
}

// Lookup returns the handler registered for the intent's type, or nil.
func (r *Registry) Lookup(in intent.Intent) Handler {
	return r.table[in.Type]
}

// Scan asks every handler in order, returning the first that accepts.
func (r *Registry) Scan(in intent.Intent) Handler {
	for _, h := range r.handlers {
		if h.CanHandle(in) {
			return h
		}
	}
	return nil
}

// Uncovered lists intent types no handler accepts.
func (r *Registry) Uncovered() []intent.Type {
	var out []intent.Type
	for _, t := range intent.AllTypes {
		if _, ok := r.table[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}

func (r *Registry) Handlers() []Handler {
	return r.handlers
}

// Named returns the first handler with the given name.
func (r *Registry) Named(name string) Handler {
	for _, h := range r.handlers {
		if h.Name() == name {
			return h
		}
	}
	return nil
}
