package executor

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	language "github.com/hanpama/viewlink/internal/language"
	resolver "github.com/hanpama/viewlink/internal/resolver"
	viewstore "github.com/hanpama/viewlink/internal/viewstore"
)

func mustParseQuery(t *testing.T, q string) *language.QueryDocument {
	t.Helper()
	d, err := language.ParseQuery(q)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return d
}

func run(t *testing.T, q string, vars map[string]any, strat *resolver.Strategy) (map[string]any, error) {
	t.Helper()
	doc := mustParseQuery(t, q)
	op := doc.Operations[0]
	return Execute(context.Background(), doc, op, vars, strat, nil)
}

func TestExecute_ResolverMap(t *testing.T) {
	strat := &resolver.Strategy{
		Store: viewstore.NewStore(),
		Resolvers: resolver.Map{
			"Query": {
				"cart": resolver.FuncEntry(func(ctx context.Context, parent, args map[string]any, info *resolver.Info) (any, error) {
					return map[string]any{"total": 2, "items": []any{
						map[string]any{"id": "a"},
						map[string]any{"id": "b"},
					}}, nil
				}),
			},
		},
		OperationType: "Query",
	}

	got, err := run(t, `{ cart { total items { id } } }`, nil, strat)
	require.NoError(t, err)

	want := map[string]any{
		"cart": map[string]any{
			"total": 2,
			"items": []any{
				map[string]any{"id": "a"},
				map[string]any{"id": "b"},
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_DirectiveLeaf(t *testing.T) {
	store := viewstore.NewStore()
	store.RegisterView("items", map[string]viewstore.Method{
		"all": func(ctx context.Context, args map[string]any) (any, error) {
			return []any{
				map[string]any{"id": "a", "label": "first"},
				map[string]any{"id": "b", "label": "second"},
			}, nil
		},
	})
	strat := &resolver.Strategy{Store: store, OperationType: "Query"}

	got, err := run(t, `{ items @kappa(view: "items", method: "all") { id } }`, nil, strat)
	require.NoError(t, err)

	// Child selections still prune the view result; no discriminator
	// is injected on the directive path.
	want := map[string]any{"items": []any{
		map[string]any{"id": "a"},
		map[string]any{"id": "b"},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_Aliases(t *testing.T) {
	strat := &resolver.Strategy{
		Store: viewstore.NewStore(),
		Resolvers: resolver.Map{
			"Query": {
				"item": resolver.FuncEntry(func(ctx context.Context, parent, args map[string]any, info *resolver.Info) (any, error) {
					return map[string]any{"id": args["id"]}, nil
				}),
			},
		},
		OperationType: "Query",
	}

	got, err := run(t, `{ first: item(id: "a") { id } second: item(id: "b") { id } }`, nil, strat)
	require.NoError(t, err)

	want := map[string]any{
		"first":  map[string]any{"id": "a"},
		"second": map[string]any{"id": "b"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_SkipInclude(t *testing.T) {
	strat := &resolver.Strategy{
		Store:         viewstore.NewStore(),
		Resolvers:     resolver.Map{"Query": {"a": resolver.ValueEntry{Value: 1}, "b": resolver.ValueEntry{Value: 2}}},
		OperationType: "Query",
	}

	got, err := run(t,
		`query($yes: Boolean!, $no: Boolean!) { a @skip(if: $yes) b @include(if: $no) c @include(if: $yes) }`,
		map[string]any{"yes": true, "no": false},
		strat,
	)
	require.NoError(t, err)

	want := map[string]any{"c": nil}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_Fragments(t *testing.T) {
	strat := &resolver.Strategy{
		Store: viewstore.NewStore(),
		Resolvers: resolver.Map{
			"Query": {
				"cart": resolver.FuncEntry(func(ctx context.Context, parent, args map[string]any, info *resolver.Info) (any, error) {
					return map[string]any{"total": 5}, nil
				}),
			},
		},
		OperationType: "Query",
	}

	t.Run("matching spread", func(t *testing.T) {
		got, err := run(t, `
			{ cart { ...CartFields } }
			fragment CartFields on Cart { total }
		`, nil, strat)
		require.NoError(t, err)
		want := map[string]any{"cart": map[string]any{"total": 5}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("result mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("non-matching inline fragment", func(t *testing.T) {
		got, err := run(t, `{ cart { ... on Order { total } } }`, nil, strat)
		require.NoError(t, err)
		want := map[string]any{"cart": map[string]any{}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("result mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("custom matcher", func(t *testing.T) {
		doc := mustParseQuery(t, `{ cart { ... on Order { total } } }`)
		op := doc.Operations[0]
		matchAll := func(typename, cond string) bool { return true }
		got, err := Execute(context.Background(), doc, op, nil, strat, matchAll)
		require.NoError(t, err)
		want := map[string]any{"cart": map[string]any{"total": 5}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("result mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestExecute_ErrorAborts(t *testing.T) {
	strat := &resolver.Strategy{
		Store: viewstore.NewStore(),
		Resolvers: resolver.Map{
			"Query": {
				"bad": resolver.FuncEntry(func(context.Context, map[string]any, map[string]any, *resolver.Info) (any, error) {
					return nil, fmt.Errorf("boom")
				}),
			},
		},
		OperationType: "Query",
	}
	_, err := run(t, `{ bad }`, nil, strat)
	require.EqualError(t, err, "boom")
}
