// Package directive extracts the reserved @kappa annotation that
// routes a field to a named view store.
//
// A field may carry @kappa(view: "items", method: "all") to delegate
// a query/mutation leaf to a view method, or
// @kappa(view: "items", event: "added") to bind a subscription to a
// view event stream.
package directive

import (
	language "github.com/hanpama/viewlink/internal/language"
)

// Name is the reserved directive name.
const Name = "kappa"

// Declaration is the schema-fragment declaration for the reserved
// directive, contributed to the accumulated typeDefs of a pipeline.
const Declaration = "directive @" + Name + " on FIELD"

// Info is the structured annotation extracted from a @kappa directive.
// Exactly one of Method and Event is normally set, depending on
// whether the field is a query/mutation leaf or a subscription root.
type Info struct {
	View   string
	Method string
	Event  string
}

// Extract returns the annotation attached to f, or nil when the field
// carries no @kappa directive. Variables are substituted into the
// directive arguments from vars.
func Extract(f *language.Field, vars map[string]any) *Info {
	d := f.Directives.ForName(Name)
	if d == nil {
		return nil
	}
	info := &Info{}
	for _, arg := range d.Arguments {
		v, _ := language.GoValue(arg.Value, vars).(string)
		switch arg.Name {
		case "view":
			info.View = v
		case "method":
			info.Method = v
		case "event":
			info.Event = v
		}
	}
	return info
}

// Has reports whether any field anywhere in the document carries the
// reserved directive. Fragment definitions count: a spread of an
// annotated fragment makes the document ours.
func Has(doc *language.QueryDocument) bool {
	for _, op := range doc.Operations {
		if selectionSetHas(op.SelectionSet) {
			return true
		}
	}
	for _, frag := range doc.Fragments {
		if selectionSetHas(frag.SelectionSet) {
			return true
		}
	}
	return false
}

func selectionSetHas(set language.SelectionSet) bool {
	for _, sel := range set {
		switch s := sel.(type) {
		case *language.Field:
			if s.Directives.ForName(Name) != nil {
				return true
			}
			if selectionSetHas(s.SelectionSet) {
				return true
			}
		case *language.InlineFragment:
			if selectionSetHas(s.SelectionSet) {
				return true
			}
		}
	}
	return false
}

// FirstAnnotated returns the first field in a pre-order traversal of
// set that carries the reserved directive, or nil. At most one
// annotated field per subscription operation is honored; this is the
// traversal that picks it. Fragment spreads are resolved against
// fragments; each fragment is visited at most once.
func FirstAnnotated(set language.SelectionSet, fragments language.FragmentDefinitionList) *language.Field {
	visited := make(map[string]bool)
	return firstAnnotated(set, fragments, visited)
}

func firstAnnotated(set language.SelectionSet, fragments language.FragmentDefinitionList, visited map[string]bool) *language.Field {
	for _, sel := range set {
		switch s := sel.(type) {
		case *language.Field:
			if s.Directives.ForName(Name) != nil {
				return s
			}
			if f := firstAnnotated(s.SelectionSet, fragments, visited); f != nil {
				return f
			}
		case *language.InlineFragment:
			if f := firstAnnotated(s.SelectionSet, fragments, visited); f != nil {
				return f
			}
		case *language.FragmentSpread:
			if visited[s.Name] {
				continue
			}
			visited[s.Name] = true
			frag := fragments.ForName(s.Name)
			if frag == nil {
				continue
			}
			if f := firstAnnotated(frag.SelectionSet, fragments, visited); f != nil {
				return f
			}
		}
	}
	return nil
}
