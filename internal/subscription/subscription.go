// Package subscription binds subscription operations to view-store
// event streams. Each subscription runs a small state machine:
//
//	Created → AwaitingReady → Bound → Unbound (terminal)
//
// Only the first @kappa-annotated field in document order is honored;
// a subscription is a single event stream per operation.
package subscription

import (
	"context"
	"sync"

	"github.com/google/uuid"

	directive "github.com/hanpama/viewlink/internal/directive"
	eventbus "github.com/hanpama/viewlink/internal/eventbus"
	events "github.com/hanpama/viewlink/internal/events"
	language "github.com/hanpama/viewlink/internal/language"
	normalize "github.com/hanpama/viewlink/internal/normalize"
	resolver "github.com/hanpama/viewlink/internal/resolver"
	stream "github.com/hanpama/viewlink/internal/stream"
	viewstore "github.com/hanpama/viewlink/internal/viewstore"
)

// Params carries everything Manage needs from the dispatcher.
type Params struct {
	Document  *language.QueryDocument
	Root      *language.OperationDefinition
	Variables map[string]any
	Store     viewstore.Interface
	Resolvers resolver.Map

	// Forward hands the operation to the rest of the pipeline when no
	// field is annotated. Nil when this link is the end of the chain.
	Forward func() *stream.Stream
}

// state of a binding.
type state int

const (
	created state = iota
	awaitingReady
	bound
	unbound
)

// emissions are buffered so view stores emitting synchronously do not
// block on a slow consumer.
const streamBuffer = 16

// Manage sets up one subscription and returns its stream. Callers end
// the subscription with Unsubscribe on the stream; cancellation before
// the readiness gate fires is honored and leaves no listener behind.
func Manage(ctx context.Context, p Params) *stream.Stream {
	var field *language.Field
	if p.Root != nil {
		field = directive.FirstAnnotated(p.Root.SelectionSet, p.Document.Fragments)
	}
	if field == nil {
		if p.Forward != nil {
			return p.Forward()
		}
		return silent(ctx, p)
	}

	info := directive.Extract(field, p.Variables)
	if info.View == "" || info.Event == "" {
		return silent(ctx, p)
	}

	b := &binding{
		id:     uuid.NewString(),
		view:   info.View,
		event:  info.Event,
		field:  field.Name,
		key:    language.ResponseKey(field),
		args:   language.ArgumentValues(field.Arguments, p.Variables),
		filter: p.Resolvers.Filter("Subscription", field.Name),
		store:  p.Store,
		stream: stream.New(streamBuffer),
		state:  created,
	}
	b.stream.OnCancel(func() { b.cancel(ctx) })
	b.await(ctx)
	return b.stream
}

// silent reports the missing resolver and returns a stream that never
// emits. This is a warning, not a failure.
func silent(ctx context.Context, p Params) *stream.Stream {
	name := ""
	if p.Root != nil {
		for _, sel := range p.Root.SelectionSet {
			if f, ok := sel.(*language.Field); ok {
				name = f.Name
				break
			}
		}
	}
	eventbus.Publish(ctx, events.SubscriptionUnresolved{Field: name})
	return stream.New(0)
}

// binding is one live subscription: the annotated field's routing
// target plus the registered listener.
type binding struct {
	id     string
	view   string
	event  string
	field  string
	key    string
	args   map[string]any
	filter resolver.FilterFunc
	store  viewstore.Interface
	stream *stream.Stream

	mu        sync.Mutex
	state     state
	cancelled bool
	off       func()
}

func (b *binding) await(ctx context.Context) {
	b.mu.Lock()
	b.state = awaitingReady
	b.mu.Unlock()

	b.store.OnReady(func() { b.bind(ctx) })
}

func (b *binding) bind(ctx context.Context) {
	b.mu.Lock()
	if b.cancelled {
		// Unsubscribe arrived before the gate fired; never register.
		b.mu.Unlock()
		return
	}
	b.off = b.store.On(b.view, b.event, func(payload any) { b.deliver(ctx, payload) })
	b.state = bound
	b.mu.Unlock()

	eventbus.Publish(ctx, events.SubscriptionBound{ID: b.id, View: b.view, Event: b.event, Field: b.field})
}

func (b *binding) deliver(ctx context.Context, payload any) {
	if b.filter != nil && !b.filter(payload, b.args) {
		return
	}
	data := normalize.Normalize(payload, b.field)
	if b.stream.Emit(stream.Result{Data: map[string]any{b.key: data}}) {
		eventbus.Publish(ctx, events.SubscriptionEmit{ID: b.id, Field: b.field})
	}
}

// cancel tears the binding down. Idempotent; safe before binding
// completes.
func (b *binding) cancel(ctx context.Context) {
	b.mu.Lock()
	if b.cancelled {
		b.mu.Unlock()
		return
	}
	b.cancelled = true
	off := b.off
	b.off = nil
	b.state = unbound
	b.mu.Unlock()

	if off != nil {
		off()
	}
	eventbus.Publish(ctx, events.SubscriptionUnbound{ID: b.id})
}
