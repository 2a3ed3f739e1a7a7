package normalize

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestNormalize_Objects(t *testing.T) {
	t.Run("stamps capitalized field name", func(t *testing.T) {
		got := Normalize(map[string]any{"id": "x1"}, "onItem")
		want := map[string]any{"id": "x1", "__typename": "OnItem"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("result mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("existing discriminator is never overwritten", func(t *testing.T) {
		in := map[string]any{"id": "x1", "__typename": "Custom"}
		got := Normalize(in, "onItem")
		assert.Equal(t, "Custom", got.(map[string]any)["__typename"])
	})

	t.Run("idempotent", func(t *testing.T) {
		once := Normalize(map[string]any{"id": "x1"}, "item")
		twice := Normalize(once, "item")
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Fatalf("not idempotent (-once +twice):\n%s", diff)
		}
	})

	t.Run("input is not mutated", func(t *testing.T) {
		in := map[string]any{"id": "x1"}
		Normalize(in, "item")
		_, ok := in["__typename"]
		assert.False(t, ok, "input map was mutated")
	})
}

func TestNormalize_Lists(t *testing.T) {
	t.Run("element-wise in order", func(t *testing.T) {
		got := Normalize([]any{
			map[string]any{"id": "a"},
			map[string]any{"id": "b", "__typename": "Kept"},
			map[string]any{"id": "c"},
		}, "item")
		want := []any{
			map[string]any{"id": "a", "__typename": "Item"},
			map[string]any{"id": "b", "__typename": "Kept"},
			map[string]any{"id": "c", "__typename": "Item"},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("result mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("typed map slice", func(t *testing.T) {
		got := Normalize([]map[string]any{{"id": "a"}}, "item")
		want := []any{map[string]any{"id": "a", "__typename": "Item"}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("result mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestNormalize_Scalars(t *testing.T) {
	assert.Nil(t, Normalize(nil, "item"))
	assert.Equal(t, 42, Normalize(42, "item"))
	assert.Equal(t, "s", Normalize("s", "item"))
	assert.Equal(t, true, Normalize(true, "item"))
}

func TestTypename(t *testing.T) {
	assert.Equal(t, "OnItem", Typename("onItem"))
	assert.Equal(t, "Item", Typename("Item"))
	assert.Equal(t, "", Typename(""))
}
