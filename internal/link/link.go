// Package link implements the directive-driven routing layer of the
// request pipeline. Operations whose documents carry @kappa anywhere
// are executed against the configured view store; everything else is
// forwarded untouched to the next link.
package link

import (
	"context"
	"strings"
	"time"

	directive "github.com/hanpama/viewlink/internal/directive"
	eventbus "github.com/hanpama/viewlink/internal/eventbus"
	events "github.com/hanpama/viewlink/internal/events"
	executor "github.com/hanpama/viewlink/internal/executor"
	language "github.com/hanpama/viewlink/internal/language"
	opid "github.com/hanpama/viewlink/internal/opid"
	resolver "github.com/hanpama/viewlink/internal/resolver"
	stream "github.com/hanpama/viewlink/internal/stream"
	subscription "github.com/hanpama/viewlink/internal/subscription"
	viewstore "github.com/hanpama/viewlink/internal/viewstore"
)

// Operation is one parsed request entering the pipeline. The link
// reads the document and variables and extends the context bag; it
// never removes bag keys.
type Operation struct {
	Query         string
	OperationName string
	Variables     map[string]any

	// Document is the parsed query. When nil, the link parses Query.
	Document *language.QueryDocument

	// Context is the mutable bag threaded through the pipeline.
	// Created on demand when nil.
	Context *Bag
}

// NextLink forwards an operation to the rest of the pipeline.
type NextLink func(ctx context.Context, op *Operation) *stream.Stream

// Link routes annotated fields to a view store.
type Link struct {
	store    viewstore.Interface
	provider resolver.Provider
	typeDefs []string
	matcher  executor.FragmentMatcher
}

// Option configures a Link.
type Option func(*Link)

// WithResolvers supplies a fixed resolver map.
func WithResolvers(m resolver.Map) Option {
	return func(l *Link) { l.provider = resolver.Static(m) }
}

// WithResolverProvider supplies a resolver-map factory evaluated once
// per operation.
func WithResolverProvider(p resolver.Provider) Option {
	return func(l *Link) { l.provider = p }
}

// WithTypeDefs adds schema fragments the link contributes to the
// pipeline's accumulated typeDefs.
func WithTypeDefs(defs ...string) Option {
	return func(l *Link) { l.typeDefs = append(l.typeDefs, defs...) }
}

// WithFragmentMatcher overrides the heuristic fragment matcher passed
// to the executor.
func WithFragmentMatcher(m executor.FragmentMatcher) Option {
	return func(l *Link) { l.matcher = m }
}

// New creates a Link over the given view store.
func New(store viewstore.Interface, opts ...Option) *Link {
	l := &Link{
		store:    store,
		provider: resolver.Static(resolver.Map{}),
		matcher:  executor.HeuristicMatcher,
	}
	for _, f := range opts {
		f(l)
	}
	return l
}

// Request handles one operation. Documents without the reserved
// directive pass through to forward unchanged; with no forward the
// returned stream completes empty. Otherwise the operation is
// classified and routed to query/mutation execution or to the
// subscription manager.
func (l *Link) Request(ctx context.Context, op *Operation, forward NextLink) *stream.Stream {
	if op.Document == nil {
		doc, err := language.ParseQuery(op.Query)
		if err != nil {
			return stream.Failed(err)
		}
		op.Document = doc
	}
	if op.Context == nil {
		op.Context = NewBag()
	}

	// The context bag is extended unconditionally, even for
	// operations this link forwards.
	op.Context.Set(ViewStoreKey, l.store)
	op.Context.AppendTypeDefs(l.typeDefs...)
	op.Context.AppendTypeDefs(directive.Declaration)

	if !directive.Has(op.Document) {
		if forward != nil {
			return forward(ctx, op)
		}
		return stream.Completed()
	}

	root := language.RootOperation(op.Document, op.OperationName)
	kind := language.Query
	if root != nil && root.Operation != "" {
		kind = root.Operation
	}
	opType := capitalize(string(kind))

	switch kind {
	case language.Query, language.Mutation:
		return l.execute(ctx, op, root, opType)
	case language.Subscription:
		return l.subscribe(ctx, op, root, forward)
	default:
		eventbus.Publish(ctx, events.OperationRejected{OperationType: opType})
		return stream.Completed()
	}
}

// execute runs a query or mutation. The resolver provider is
// evaluated once; execution is deferred until the view store's
// readiness gate fires, then produces exactly one result emission
// followed by completion. Field errors surface as the stream error.
func (l *Link) execute(ctx context.Context, op *Operation, root *language.OperationDefinition, opType string) *stream.Stream {
	if root == nil {
		eventbus.Publish(ctx, events.OperationRejected{OperationType: opType})
		return stream.Completed()
	}

	resolvers := l.provider()
	s := stream.New(1)
	ctx, _ = opid.NewContext(ctx)

	start := time.Now()
	eventbus.Publish(ctx, events.OperationStart{
		Query:         op.Query,
		OperationName: op.OperationName,
		OperationType: opType,
	})

	l.store.OnReady(func() {
		go func() {
			strat := &resolver.Strategy{
				Store:         l.store,
				Resolvers:     resolvers,
				OperationType: opType,
			}
			data, err := executor.Execute(ctx, op.Document, root, op.Variables, strat, l.matcher)
			eventbus.Publish(ctx, events.OperationFinish{
				Query:         op.Query,
				OperationName: op.OperationName,
				OperationType: opType,
				Err:           err,
				Duration:      time.Since(start),
			})
			if err != nil {
				s.Fail(err)
				return
			}
			s.Emit(stream.Result{Data: data})
			s.Complete()
		}()
	})
	return s
}

func (l *Link) subscribe(ctx context.Context, op *Operation, root *language.OperationDefinition, forward NextLink) *stream.Stream {
	var fwd func() *stream.Stream
	if forward != nil {
		fwd = func() *stream.Stream { return forward(ctx, op) }
	}
	return subscription.Manage(ctx, subscription.Params{
		Document:  op.Document,
		Root:      root,
		Variables: op.Variables,
		Store:     l.store,
		Resolvers: l.provider(),
		Forward:   fwd,
	})
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
