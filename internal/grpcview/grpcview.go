// Package grpcview implements viewstore.Interface over a gRPC
// connection. The wire contract is schema-less: every payload travels
// as a structpb.Struct, so remote view stores need no generated code.
//
//	rpc /viewlink.ViewStore/Ping  (unary)           liveness probe
//	rpc /viewlink.ViewStore/Call  (unary)           {view, method, args} → {data}
//	rpc /viewlink.ViewStore/Watch (server stream)   {view, event} → {payload}*
package grpcview

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	eventbus "github.com/hanpama/viewlink/internal/eventbus"
	events "github.com/hanpama/viewlink/internal/events"
	viewstore "github.com/hanpama/viewlink/internal/viewstore"
)

const (
	pingMethod  = "/viewlink.ViewStore/Ping"
	callMethod  = "/viewlink.ViewStore/Call"
	watchMethod = "/viewlink.ViewStore/Watch"
)

var watchDesc = &grpc.StreamDesc{StreamName: "Watch", ServerStreams: true}

// Options configure a Remote.
type Options struct {
	// RPCTimeout is applied to unary calls lacking a deadline.
	// 0 means none.
	RPCTimeout time.Duration

	// ProbeInterval is the delay between readiness probes.
	ProbeInterval time.Duration

	// DialOptions override the default insecure dial configuration.
	DialOptions []grpc.DialOption
}

type Option func(*Options)

func WithRPCTimeout(d time.Duration) Option    { return func(o *Options) { o.RPCTimeout = d } }
func WithProbeInterval(d time.Duration) Option { return func(o *Options) { o.ProbeInterval = d } }
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *Options) { o.DialOptions = opts }
}

// Remote is a view store backed by a remote gRPC endpoint.
type Remote struct {
	conn *grpc.ClientConn
	opts Options
	gate viewstore.ReadyGate
}

var _ viewstore.Interface = (*Remote)(nil)

// Dial connects to a remote view store. The readiness gate stays shut
// until Start's probe succeeds.
func Dial(target string, opts ...Option) (*Remote, error) {
	o := Options{ProbeInterval: 500 * time.Millisecond}
	for _, f := range opts {
		f(&o)
	}
	if len(o.DialOptions) == 0 {
		o.DialOptions = []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoff.DefaultConfig}),
		}
	}
	conn, err := grpc.NewClient(target, o.DialOptions...)
	if err != nil {
		return nil, fmt.Errorf("grpcview: dial %s: %w", target, err)
	}
	return &Remote{conn: conn, opts: o}, nil
}

// Start probes the endpoint until it answers, then fires the
// readiness gate. It returns immediately; probing runs in the
// background until success or ctx cancellation.
func (r *Remote) Start(ctx context.Context) {
	go func() {
		for {
			probeCtx, cancel := context.WithTimeout(ctx, r.opts.ProbeInterval*4+time.Second)
			req, _ := structpb.NewStruct(map[string]any{})
			resp := &structpb.Struct{}
			err := r.conn.Invoke(probeCtx, pingMethod, req, resp)
			cancel()
			if err == nil {
				r.gate.Fire()
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.opts.ProbeInterval):
			}
		}
	}()
}

// Call invokes a remote view method.
func (r *Remote) Call(ctx context.Context, view, method string, args map[string]any) (any, error) {
	if _, ok := ctx.Deadline(); !ok && r.opts.RPCTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.RPCTimeout)
		defer cancel()
	}

	req, err := structpb.NewStruct(map[string]any{
		"view":   view,
		"method": method,
		"args":   args,
	})
	if err != nil {
		return nil, fmt.Errorf("grpcview: encode args: %w", err)
	}

	start := time.Now()
	eventbus.Publish(ctx, events.ViewCallStart{View: view, Method: method})
	resp := &structpb.Struct{}
	err = r.conn.Invoke(ctx, callMethod, req, resp)
	eventbus.Publish(ctx, events.ViewCallFinish{View: view, Method: method, Err: err, Duration: time.Since(start)})
	if err != nil {
		return nil, err
	}
	if v, ok := resp.Fields["data"]; ok {
		return v.AsInterface(), nil
	}
	return nil, nil
}

// On opens a server stream for (view, event) and forwards each frame's
// payload to h. The returned function tears the stream down.
func (r *Remote) On(view, event string, h viewstore.Handler) (off func()) {
	ctx, cancel := context.WithCancel(context.Background())
	go r.watch(ctx, view, event, h)
	return cancel
}

func (r *Remote) watch(ctx context.Context, view, event string, h viewstore.Handler) {
	req, err := structpb.NewStruct(map[string]any{"view": view, "event": event})
	if err != nil {
		return
	}
	cs, err := r.conn.NewStream(ctx, watchDesc, watchMethod)
	if err != nil {
		return
	}
	if err := cs.SendMsg(req); err != nil {
		return
	}
	if err := cs.CloseSend(); err != nil {
		return
	}
	for {
		frame := &structpb.Struct{}
		if err := cs.RecvMsg(frame); err != nil {
			return
		}
		if v, ok := frame.Fields["payload"]; ok {
			h(v.AsInterface())
		}
	}
}

// OnReady implements the readiness gate.
func (r *Remote) OnReady(fn func()) { r.gate.OnReady(fn) }

// Close tears down the underlying connection.
func (r *Remote) Close() error { return r.conn.Close() }
