package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hanpama/viewlink/internal/eventbus"
	"github.com/hanpama/viewlink/internal/grpcview"
	"github.com/hanpama/viewlink/internal/language"
	"github.com/hanpama/viewlink/internal/link"
	"github.com/hanpama/viewlink/internal/logging"
	"github.com/hanpama/viewlink/internal/otel"
	"github.com/hanpama/viewlink/internal/server"
	"github.com/hanpama/viewlink/internal/viewstore"
)

const rootUsage = `viewlink: @kappa directive gateway to view stores

USAGE:
  viewlink <command> [flags]

COMMANDS:
  serve            Serve GraphQL over HTTP/websocket against a demo view store
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -server.addr <addr>        HTTP listen address (default: :8080)
  -server.pretty             Pretty-print JSON responses
  -server.timeout <duration> Per-request timeout, e.g. 10s (default: 10s)
  -view.grpc <target>        Use a remote gRPC view store instead of the demo one
  -otel.endpoint <addr>      OTLP collector endpoint
  -otel.service <name>       OpenTelemetry service name (default: viewlink)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("viewlink", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	switch cmd := remaining[0]; cmd {
	case "serve":
		return cmdServe(remaining[1:])
	case "help":
		if len(remaining) > 1 && remaining[1] == "serve" {
			fmt.Print(serveUsage)
		} else {
			fmt.Print(rootUsage)
		}
		return nil
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdServe(args []string) error {
	addr := ":8080"
	pretty := false
	timeout := 10 * time.Second
	grpcTarget := ""
	otelEndpoint := ""
	otelService := "viewlink"

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&addr, "server.addr", addr, "HTTP listen address")
	fs.BoolVar(&pretty, "server.pretty", pretty, "Pretty-print JSON responses")
	fs.DurationVar(&timeout, "server.timeout", timeout, "Per-request timeout")
	fs.StringVar(&grpcTarget, "view.grpc", grpcTarget, "Remote gRPC view store target")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}

	eventbus.Use(eventbus.New())

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	detach := logging.Attach(logger)
	defer detach()

	shutdown, err := otel.Setup(otelEndpoint, otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	var store viewstore.Interface
	if grpcTarget != "" {
		remote, err := grpcview.Dial(grpcTarget)
		if err != nil {
			return err
		}
		defer remote.Close()
		remote.Start(context.Background())
		store = remote
	} else {
		store = demoStore()
	}

	if _, err := language.ParseSchema("typedefs", demoTypeDefs); err != nil {
		return fmt.Errorf("typedefs: %w", err)
	}
	lnk := link.New(store, link.WithTypeDefs(demoTypeDefs))

	sopts := []server.Option{server.WithTimeout(timeout)}
	if pretty {
		sopts = append(sopts, server.WithPretty())
	}
	h := server.New(lnk, sopts...)

	mux := http.NewServeMux()
	mux.Handle("/graphql", h)

	log.Printf("viewlink listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

const demoTypeDefs = `
type Item {
  id: ID!
  label: String
}
`

// demoStore is a ready in-memory items view: methods all/add, event
// "added" fired on every add.
func demoStore() *viewstore.Store {
	store := viewstore.NewStore()

	var mu sync.Mutex
	items := []any{
		map[string]any{"id": "i1", "label": "first"},
	}

	store.RegisterView("items", map[string]viewstore.Method{
		"all": func(ctx context.Context, args map[string]any) (any, error) {
			mu.Lock()
			defer mu.Unlock()
			return append([]any(nil), items...), nil
		},
		"add": func(ctx context.Context, args map[string]any) (any, error) {
			item := map[string]any{
				"id":    fmt.Sprintf("i%d", time.Now().UnixNano()),
				"label": args["label"],
			}
			mu.Lock()
			items = append(items, item)
			mu.Unlock()
			store.Emit("items", "added", item)
			return item, nil
		},
	})
	store.SetReady()
	return store
}
