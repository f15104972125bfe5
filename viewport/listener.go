package viewport

// Listener is notified after every change of the visible region.
type Listener interface {
	ViewportUpdated(v *Viewport)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(v *Viewport)

func (f ListenerFunc) ViewportUpdated(v *Viewport) { f(v) }

type subscription struct {
	id int
	l  Listener
}

// Subscribe registers l and returns a function removing it. Listeners are
// called in subscription order.
func (v *Viewport) Subscribe(l Listener) (cancel func()) {
	v.nextID++
	id := v.nextID
	v.listeners = append(v.listeners, subscription{id: id, l: l})
	return func() {
		for i, s := range v.listeners {
			if s.id == id {
				v.listeners = append(v.listeners[:i:i], v.listeners[i+1:]...)
				return
			}
		}
	}
}

func (v *Viewport) notify() {
	// listeners may subscribe or cancel while being notified
	subs := v.listeners
	for _, s := range subs {
		s.l.ViewportUpdated(v)
	}
}
