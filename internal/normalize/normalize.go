// Package normalize stamps a __typename discriminator onto resolver
// results so they compose with downstream result merging.
package normalize

import "strings"

// TypenameKey is the discriminator field injected into object results.
const TypenameKey = "__typename"

// Normalize returns data with a __typename derived from fieldName set
// on object values. Scalars and nil pass through unchanged. Slices are
// handled element-wise, preserving order. An existing discriminator is
// never overwritten. The input is not mutated; annotated objects are
// shallow copies.
func Normalize(data any, fieldName string) any {
	switch v := data.(type) {
	case nil:
		return nil
	case map[string]any:
		return normalizeObject(v, fieldName)
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = Normalize(elem, fieldName)
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = normalizeObject(elem, fieldName)
		}
		return out
	default:
		return data
	}
}

func normalizeObject(obj map[string]any, fieldName string) map[string]any {
	if _, ok := obj[TypenameKey]; ok {
		return obj
	}
	out := make(map[string]any, len(obj)+1)
	for k, v := range obj {
		out[k] = v
	}
	out[TypenameKey] = Typename(fieldName)
	return out
}

// Typename derives the discriminator value from a field name by
// capitalizing its first letter.
func Typename(fieldName string) string {
	if fieldName == "" {
		return ""
	}
	return strings.ToUpper(fieldName[:1]) + fieldName[1:]
}
