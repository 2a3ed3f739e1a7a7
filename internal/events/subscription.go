package events

// SubscriptionBound is emitted once a subscription's listener has been
// registered on the view store.
type SubscriptionBound struct {
	ID    string
	View  string
	Event string
	Field string
}

// SubscriptionEmit is emitted for every datum forwarded to a
// subscription stream (after filtering).
type SubscriptionEmit struct {
	ID    string
	Field string
}

// SubscriptionUnbound is emitted when a subscription's listener is
// removed, or when a pre-bind cancellation is honored.
type SubscriptionUnbound struct {
	ID string
}

// SubscriptionUnresolved is emitted when a subscription operation has
// no annotated field and no forward link. The stream stays silent.
type SubscriptionUnresolved struct {
	Field string
}
