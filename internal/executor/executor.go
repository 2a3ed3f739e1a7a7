// Package executor walks an operation's selection set and resolves
// every field through a resolver.Strategy. Unlike a schema-typed
// engine it has no field definitions to consult: child selections are
// applied wherever the resolved value is an object or a list of
// objects, and everything else is returned as-is.
package executor

import (
	"context"

	directive "github.com/hanpama/viewlink/internal/directive"
	language "github.com/hanpama/viewlink/internal/language"
	normalize "github.com/hanpama/viewlink/internal/normalize"
	resolver "github.com/hanpama/viewlink/internal/resolver"
)

// FragmentMatcher decides whether a value tagged with typename
// satisfies a fragment's type condition. typename may be empty when
// the value carries no discriminator.
type FragmentMatcher func(typename, typeCondition string) bool

// HeuristicMatcher matches on exact type-name equality and includes
// fragments on untagged values.
func HeuristicMatcher(typename, typeCondition string) bool {
	return typename == "" || typeCondition == "" || typename == typeCondition
}

// Execute runs one query or mutation operation to completion and
// returns the merged data object. The first field-resolution error
// aborts execution.
func Execute(
	ctx context.Context,
	doc *language.QueryDocument,
	op *language.OperationDefinition,
	vars map[string]any,
	strat *resolver.Strategy,
	matcher FragmentMatcher,
) (map[string]any, error) {
	if matcher == nil {
		matcher = HeuristicMatcher
	}
	st := &execState{
		doc:     doc,
		vars:    vars,
		strat:   strat,
		matcher: matcher,
	}
	return st.executeSelectionSet(ctx, op.SelectionSet, nil)
}

type execState struct {
	doc     *language.QueryDocument
	vars    map[string]any
	strat   *resolver.Strategy
	matcher FragmentMatcher
}

func (st *execState) executeSelectionSet(ctx context.Context, set language.SelectionSet, parent map[string]any) (map[string]any, error) {
	grouped := st.collectFields(set, parent, make(map[string]bool))
	result := make(map[string]any, len(grouped.fields))

	for _, cf := range grouped.orderedFields() {
		field := cf.Fields[0]
		args := language.ArgumentValues(field.Arguments, st.vars)
		info := &resolver.Info{
			Field:         field,
			ResultKey:     cf.ResponseKey,
			Directive:     directive.Extract(field, st.vars),
			OperationType: st.strat.OperationType,
		}

		value, err := st.strat.ResolveField(ctx, parent, args, info)
		if err != nil {
			return nil, err
		}

		sub := mergeSelectionSets(cf.Fields)
		completed, err := st.completeValue(ctx, sub, value)
		if err != nil {
			return nil, err
		}
		result[cf.ResponseKey] = completed
	}
	return result, nil
}

// completeValue applies the field's child selections to object and
// list values; anything else passes through.
func (st *execState) completeValue(ctx context.Context, sub language.SelectionSet, value any) (any, error) {
	if len(sub) == 0 || value == nil {
		return value, nil
	}
	switch v := value.(type) {
	case map[string]any:
		return st.executeSelectionSet(ctx, sub, v)
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			completed, err := st.completeValue(ctx, sub, elem)
			if err != nil {
				return nil, err
			}
			out[i] = completed
		}
		return out, nil
	default:
		return value, nil
	}
}

// collectedFieldMap preserves field order from the original query.
type collectedFieldMap struct {
	fields []collectedField
	index  map[string]int
}

type collectedField struct {
	ResponseKey string
	Fields      []*language.Field
}

func newCollectedFieldMap() *collectedFieldMap {
	return &collectedFieldMap{index: make(map[string]int)}
}

func (cfm *collectedFieldMap) add(key string, field *language.Field) {
	if idx, ok := cfm.index[key]; ok {
		cfm.fields[idx].Fields = append(cfm.fields[idx].Fields, field)
		return
	}
	cfm.index[key] = len(cfm.fields)
	cfm.fields = append(cfm.fields, collectedField{ResponseKey: key, Fields: []*language.Field{field}})
}

func (cfm *collectedFieldMap) orderedFields() []collectedField { return cfm.fields }

func (st *execState) collectFields(set language.SelectionSet, parent map[string]any, visited map[string]bool) *collectedFieldMap {
	grouped := newCollectedFieldMap()
	st.collectFieldsImpl(set, parent, grouped, visited)
	return grouped
}

func (st *execState) collectFieldsImpl(set language.SelectionSet, parent map[string]any, grouped *collectedFieldMap, visited map[string]bool) {
	typename, _ := parent[normalize.TypenameKey].(string)

	for _, sel := range set {
		switch s := sel.(type) {
		case *language.Field:
			if !st.shouldInclude(s.Directives) {
				continue
			}
			grouped.add(language.ResponseKey(s), s)

		case *language.InlineFragment:
			if !st.shouldInclude(s.Directives) {
				continue
			}
			if s.TypeCondition != "" && !st.matcher(typename, s.TypeCondition) {
				continue
			}
			st.collectFieldsImpl(s.SelectionSet, parent, grouped, visited)

		case *language.FragmentSpread:
			if !st.shouldInclude(s.Directives) {
				continue
			}
			if visited[s.Name] {
				continue
			}
			visited[s.Name] = true
			frag := st.doc.Fragments.ForName(s.Name)
			if frag == nil {
				continue
			}
			if frag.TypeCondition != "" && !st.matcher(typename, frag.TypeCondition) {
				continue
			}
			if !st.shouldInclude(frag.Directives) {
				continue
			}
			st.collectFieldsImpl(frag.SelectionSet, parent, grouped, visited)
		}
	}
}

// shouldInclude evaluates @skip and @include.
func (st *execState) shouldInclude(directives language.DirectiveList) bool {
	if skip := directives.ForName("skip"); skip != nil {
		if cond, ok := directiveIf(skip, st.vars); ok && cond {
			return false
		}
	}
	if include := directives.ForName("include"); include != nil {
		if cond, ok := directiveIf(include, st.vars); ok && !cond {
			return false
		}
	}
	return true
}

func directiveIf(d *language.Directive, vars map[string]any) (bool, bool) {
	for _, arg := range d.Arguments {
		if arg.Name == "if" {
			b, ok := language.GoValue(arg.Value, vars).(bool)
			return b, ok
		}
	}
	return false, false
}

// mergeSelectionSets merges child selections from a response-key group.
func mergeSelectionSets(fields []*language.Field) language.SelectionSet {
	var merged language.SelectionSet
	for _, f := range fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}
