package events

import "time"

// ViewCallStart is emitted before invoking a view-store method.
type ViewCallStart struct {
	View   string
	Method string
}

// ViewCallFinish is emitted after a view-store method returned.
type ViewCallFinish struct {
	View     string
	Method   string
	Err      error
	Duration time.Duration
}
