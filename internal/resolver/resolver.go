// Package resolver holds the caller-supplied resolver map and the
// per-field resolution strategy the executor drives.
package resolver

import (
	"context"

	directive "github.com/hanpama/viewlink/internal/directive"
	language "github.com/hanpama/viewlink/internal/language"
	normalize "github.com/hanpama/viewlink/internal/normalize"
	viewstore "github.com/hanpama/viewlink/internal/viewstore"
)

// Info describes the field being resolved.
type Info struct {
	Field *language.Field
	// ResultKey is the alias when present, the field name otherwise.
	ResultKey string
	// Directive is the extracted @kappa annotation, nil when absent.
	Directive *directive.Info
	// OperationType is the capitalized root operation type the field
	// executes under: Query, Mutation or Subscription.
	OperationType string
}

// Func is a resolver function entry.
type Func func(ctx context.Context, parent map[string]any, args map[string]any, info *Info) (any, error)

// FilterFunc decides whether a subscription event payload is forwarded.
type FilterFunc func(payload any, args map[string]any) bool

// Entry is a resolver-map entry: a static value, a resolver function,
// or a subscription filter.
type Entry interface{ entry() }

// ValueEntry resolves to a fixed value, returned unmodified. It covers
// metadata fields such as a discriminator resolving to nil.
type ValueEntry struct{ Value any }

// FuncEntry is an invokable resolver whose result is normalized.
type FuncEntry Func

// FilterEntry filters subscription events; it never resolves
// query/mutation fields.
type FilterEntry FilterFunc

func (ValueEntry) entry()  {}
func (FuncEntry) entry()   {}
func (FilterEntry) entry() {}

// FieldMap maps field names to entries.
type FieldMap map[string]Entry

// Map maps a type name (Query, Mutation, Subscription, or a runtime
// object type name) to its field entries. Unknown type names simply
// have no custom resolvers.
type Map map[string]FieldMap

// Provider yields the resolver map for one operation. It is evaluated
// once per request, which permits per-request resolver state.
type Provider func() Map

// Static wraps a fixed map into a Provider.
func Static(m Map) Provider { return func() Map { return m } }

// Filter returns the subscription filter registered for a field, or
// nil.
func (m Map) Filter(typeName, field string) FilterFunc {
	fields, ok := m[typeName]
	if !ok {
		return nil
	}
	if f, ok := fields[field].(FilterEntry); ok {
		return FilterFunc(f)
	}
	return nil
}

// Strategy is the per-field resolution strategy handed to the
// executor. Resolution order, first match wins:
//
//  1. a (view, method) annotation delegates to the view store and the
//     result is trusted as-is;
//  2. data already present on the parent under the alias key or the
//     field name (alias preferred) is returned unchanged;
//  3. a resolver-map entry under the parent's __typename (falling
//     back to the operation type) is applied: functions are invoked
//     and normalized, values returned unmodified;
//  4. otherwise the field resolves to nil.
type Strategy struct {
	Store         viewstore.Interface
	Resolvers     Map
	OperationType string
}

// ResolveField resolves one field against its parent value. Errors
// from view methods and resolver functions propagate unwrapped.
func (s *Strategy) ResolveField(ctx context.Context, parent map[string]any, args map[string]any, info *Info) (any, error) {
	if d := info.Directive; d != nil && d.Method != "" {
		return s.Store.Call(ctx, d.View, d.Method, args)
	}

	aliased, aliasOk := parent[info.ResultKey]
	plain, plainOk := parent[info.Field.Name]
	if aliasOk {
		return aliased, nil
	}
	if plainOk {
		return plain, nil
	}

	typeName := s.OperationType
	if tn, ok := parent[normalize.TypenameKey].(string); ok && tn != "" {
		typeName = tn
	}
	if entry, ok := s.Resolvers[typeName][info.Field.Name]; ok {
		switch e := entry.(type) {
		case ValueEntry:
			return e.Value, nil
		case FuncEntry:
			data, err := e(ctx, parent, args, info)
			if err != nil {
				return nil, err
			}
			return normalize.Normalize(data, info.Field.Name), nil
		}
		// Filter entries only apply to subscriptions; fall through.
	}

	return nil, nil
}
