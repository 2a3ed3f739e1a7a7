// Package stream provides the deferred result handle returned by the
// link: a single-emission stream for queries and mutations, a
// long-lived one for subscriptions.
package stream

import "sync"

// Result is one emission of a stream.
type Result struct {
	Data map[string]any
}

// Stream delivers results to a consumer that ranges over Results.
// Producers call Emit, Fail and Complete; the consumer calls
// Unsubscribe to cancel early. Unsubscribe is idempotent and safe to
// call at any point of the stream's life, including before the
// producer has started.
type Stream struct {
	results chan Result
	done    chan struct{}

	mu       sync.Mutex
	closed   bool
	err      error
	onCancel []func()
	senders  sync.WaitGroup
}

// New creates an open stream. buffer sizes the result channel; a
// buffer of 1 lets single-emission producers finish without waiting
// for the consumer.
func New(buffer int) *Stream {
	return &Stream{
		results: make(chan Result, buffer),
		done:    make(chan struct{}),
	}
}

// Completed returns a stream that is already closed without emissions.
func Completed() *Stream {
	s := New(0)
	s.Complete()
	return s
}

// Failed returns a stream that is already closed with err.
func Failed(err error) *Stream {
	s := New(0)
	s.Fail(err)
	return s
}

// Results returns the emission channel. It is closed on completion,
// failure, or unsubscribe.
func (s *Stream) Results() <-chan Result { return s.results }

// Done returns a channel closed when the stream terminates.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Err returns the terminal error, if any. Meaningful once Results is
// closed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Emit delivers r to the consumer, blocking until it is accepted or
// the stream closes. Reports whether the result was accepted.
func (s *Stream) Emit(r Result) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.senders.Add(1)
	s.mu.Unlock()
	defer s.senders.Done()

	select {
	case s.results <- r:
		return true
	case <-s.done:
		return false
	}
}

// Complete closes the stream normally.
func (s *Stream) Complete() { s.close(nil) }

// Fail closes the stream with a terminal error.
func (s *Stream) Fail(err error) { s.close(err) }

// Unsubscribe cancels the stream.
func (s *Stream) Unsubscribe() { s.close(nil) }

// OnCancel registers fn to run when the stream closes for any reason.
// If the stream is already closed, fn runs immediately.
func (s *Stream) OnCancel(fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fn()
		return
	}
	s.onCancel = append(s.onCancel, fn)
	s.mu.Unlock()
}

func (s *Stream) close(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = err
	hooks := s.onCancel
	s.onCancel = nil
	close(s.done)
	s.mu.Unlock()

	// No new senders can start (closed is set) and blocked ones exit
	// via done, so the result channel can be closed for ranging
	// consumers.
	s.senders.Wait()
	close(s.results)

	for _, fn := range hooks {
		fn()
	}
}
