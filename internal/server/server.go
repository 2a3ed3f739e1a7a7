// Package server exposes a Link over HTTP: queries and mutations via
// POST, subscriptions via a websocket upgrade on the same endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	language "github.com/hanpama/viewlink/internal/language"
	link "github.com/hanpama/viewlink/internal/link"
)

// Handler is an http.Handler that serves operations through a Link.
type Handler struct {
	link *link.Link
	opt  Options
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context
	// has none. 0 means no default timeout. It does not apply to
	// websocket subscriptions.
	Timeout time.Duration

	// Pretty enables indented JSON responses.
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means
	// unlimited.
	MaxBodyBytes int64
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// New creates a handler over l.
func New(l *link.Link, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{link: l, opt: op}
}

// Request is the JSON body of one operation.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		h.serveWS(w, r)
		return
	}
	if r.Method != http.MethodPost {
		h.writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}

	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	req, err := h.parseBody(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	doc, err := language.ParseQuery(req.Query)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if root := language.RootOperation(doc, req.OperationName); root != nil && root.Operation == language.Subscription {
		h.writeJSON(w, http.StatusBadRequest, errorBody("subscriptions require a websocket connection"))
		return
	}

	op := &link.Operation{
		Query:         req.Query,
		OperationName: req.OperationName,
		Variables:     req.Variables,
		Document:      doc,
	}
	s := h.link.Request(ctx, op, nil)

	select {
	case res, ok := <-s.Results():
		if !ok {
			if err := s.Err(); err != nil {
				h.writeJSON(w, http.StatusOK, errorBody(err.Error()))
				return
			}
			h.writeJSON(w, http.StatusOK, map[string]any{"data": nil})
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]any{"data": res.Data})
	case <-ctx.Done():
		s.Unsubscribe()
		h.writeJSON(w, http.StatusGatewayTimeout, errorBody("request timed out"))
	}
}

// serveWS runs one subscription per connection: the first client frame
// carries the operation, each matching event becomes a data frame.
func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var req Request
	if err := conn.ReadJSON(&req); err != nil {
		return
	}

	op := &link.Operation{
		Query:         req.Query,
		OperationName: req.OperationName,
		Variables:     req.Variables,
	}
	s := h.link.Request(r.Context(), op, nil)
	defer s.Unsubscribe()

	// Reader loop only watches for the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case res, ok := <-s.Results():
			if !ok {
				if err := s.Err(); err != nil {
					_ = conn.WriteJSON(errorBody(err.Error()))
				}
				return
			}
			if err := conn.WriteJSON(map[string]any{"data": res.Data}); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Handler) parseBody(r *http.Request) (Request, error) {
	reader := io.Reader(r.Body)
	if h.opt.MaxBodyBytes > 0 {
		reader = io.LimitReader(r.Body, h.opt.MaxBodyBytes)
	}
	defer r.Body.Close()
	var req Request
	if err := json.NewDecoder(reader).Decode(&req); err != nil {
		return Request{}, err
	}
	if req.Query == "" {
		return Request{}, errMissingQuery
	}
	if req.Variables == nil {
		req.Variables = map[string]any{}
	}
	return req, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if h.opt.Pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

var errMissingQuery = errors.New("missing 'query'")

func errorBody(msg string) map[string]any {
	return map[string]any{"errors": []map[string]any{{"message": msg}}}
}
