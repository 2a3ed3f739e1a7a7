package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	link "github.com/hanpama/viewlink/internal/link"
	viewstore "github.com/hanpama/viewlink/internal/viewstore"
)

func testLink(t *testing.T) (*link.Link, *viewstore.Store) {
	t.Helper()
	store := viewstore.NewStore()
	store.RegisterView("items", map[string]viewstore.Method{
		"all": func(ctx context.Context, args map[string]any) (any, error) {
			return []any{map[string]any{"id": "a"}}, nil
		},
	})
	store.SetReady()
	return link.New(store), store
}

func postJSON(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHandler_Query(t *testing.T) {
	l, _ := testLink(t)
	srv := httptest.NewServer(New(l))
	defer srv.Close()

	resp, body := postJSON(t, srv.URL, Request{Query: `{ items @kappa(view: "items", method: "all") { id } }`})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	want := map[string]any{"data": map[string]any{"items": []any{map[string]any{"id": "a"}}}}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Fatalf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestHandler_BadRequests(t *testing.T) {
	l, _ := testLink(t)
	srv := httptest.NewServer(New(l))
	defer srv.Close()

	t.Run("missing query", func(t *testing.T) {
		resp, _ := postJSON(t, srv.URL, Request{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("syntax error", func(t *testing.T) {
		resp, _ := postJSON(t, srv.URL, Request{Query: `{ nope`})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("subscription over POST", func(t *testing.T) {
		resp, body := postJSON(t, srv.URL, Request{
			Query: `subscription { onItem @kappa(view: "items", event: "added") }`,
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body["errors"].([]any)[0].(map[string]any)["message"], "websocket")
	})

	t.Run("method not allowed", func(t *testing.T) {
		resp, err := http.Get(srv.URL)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestHandler_Websocket(t *testing.T) {
	l, store := testLink(t)
	srv := httptest.NewServer(New(l))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Request{
		Query: `subscription { onItem @kappa(view: "items", event: "added") { id } }`,
	}))

	// The binding happens on the server side; give it a moment before
	// firing the event.
	require.Eventually(t, func() bool {
		return store.ListenerCount("items", "added") == 1
	}, time.Second, 10*time.Millisecond)

	store.Emit("items", "added", map[string]any{"id": "x1"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))

	want := map[string]any{"data": map[string]any{
		"onItem": map[string]any{"id": "x1", "__typename": "OnItem"},
	}}
	if diff := cmp.Diff(want, frame); diff != "" {
		t.Fatalf("frame mismatch (-want +got):\n%s", diff)
	}

	// Closing the socket tears the subscription down.
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return store.ListenerCount("items", "added") == 0
	}, time.Second, 10*time.Millisecond)
}
