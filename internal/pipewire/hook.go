package pipewire

// Hook is a registered listener. Remove detaches it; after that the listener
// is never called again.
type Hook struct {
	remove func()
	active bool
}

// Remove detaches the listener. Safe to call more than once.
func (h *Hook) Remove() {
	if h == nil || !h.active {
		return
	}
	h.active = false
	h.remove()
}

// Active reports whether the listener is still attached.
func (h *Hook) Active() bool {
	return h != nil && h.active
}

// hookList holds the listeners of one proxy in registration order.
type hookList[T any] struct {
	entries []*hookEntry[T]
}

type hookEntry[T any] struct {
	events T
	hook   *Hook
}

func (l *hookList[T]) add(events T) *Hook {
	e := &hookEntry[T]{events: events}
	e.hook = &Hook{active: true}
	e.hook.remove = func() {
		for i, cur := range l.entries {
			if cur == e {
				l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
				return
			}
		}
	}
	l.entries = append(l.entries, e)
	return e.hook
}

// each calls fn for every listener still attached when it is reached.
// Listeners removed during the walk are skipped.
func (l *hookList[T]) each(fn func(T)) {
	snapshot := make([]*hookEntry[T], len(l.entries))
	copy(snapshot, l.entries)
	for _, e := range snapshot {
		if e.hook.active {
			fn(e.events)
		}
	}
}

func (l *hookList[T]) len() int {
	return len(l.entries)
}
