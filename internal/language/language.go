package language

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func ParseSchema(name, source string) (*SchemaDocument, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// RootOperation returns the operation selected by name, or the only
// operation in the document when name is empty.
func RootOperation(doc *QueryDocument, name string) *OperationDefinition {
	if op := doc.Operations.ForName(name); op != nil {
		return op
	}
	if name == "" && len(doc.Operations) == 1 {
		return doc.Operations[0]
	}
	return nil
}

// ArgumentValues converts a field's argument list to Go values,
// substituting variables from vars.
func ArgumentValues(args ArgumentList, vars map[string]any) map[string]any {
	if len(args) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(args))
	for _, a := range args {
		out[a.Name] = GoValue(a.Value, vars)
	}
	return out
}

// GoValue converts an AST value into a plain Go value. Variables are
// looked up in vars; unknown variables become nil.
func GoValue(v *Value, vars map[string]any) any {
	if v == nil {
		return nil
	}
	if v.Kind == Variable {
		return vars[v.Raw]
	}
	val, err := v.Value(vars)
	if err != nil {
		return nil
	}
	return val
}
