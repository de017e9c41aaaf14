package events

// Subscriber consumes the broker's event stream. Implementations adapt it
// to one transport.
type Subscriber interface {
	// Send delivers an event. It must not block on slow readers.
	Send(Event) error

	// Close releases the subscriber. The broker calls it on shutdown or
	// Unsubscribe.
	Close() error
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(Event) error

// Send implements Subscriber.
func (f SubscriberFunc) Send(e Event) error { return f(e) }

// Close implements Subscriber.
func (f SubscriberFunc) Close() error { return nil }
