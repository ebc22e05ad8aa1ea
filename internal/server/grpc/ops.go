// Package grpcserver runs the operations gRPC endpoint: the standard health
// service, fed by periodic dependency checks, plus optional reflection.
package grpcserver

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported alongside the overall "" entry.
const ServiceName = "placement"

// Dependency is one checked dependency. Any error marks the server NOT_SERVING.
type Dependency struct {
	Name  string
	Check func(ctx context.Context) error
}

// Options tune an Ops server.
type Options struct {
	Interval        time.Duration // check period, default 10s
	ShutdownTimeout time.Duration // GracefulStop budget before Stop, default 5s
	Reflection      bool
}

// Ops serves grpc.health.v1 for orchestrators.
type Ops struct {
	srv    *grpc.Server
	health *health.Server
	deps   []Dependency
	opts   Options
	log    *zap.Logger
}

// NewOps builds the server with the recovery and logging interceptors
// installed. Successful health checks are logged at debug level only.
func NewOps(log *zap.Logger, opts Options, deps ...Dependency) *Ops {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoverUnary(log),
			LoggingUnary(log, healthpb.Health_Check_FullMethodName),
		),
		grpc.ChainStreamInterceptor(RecoverStream(log)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if opts.Reflection {
		reflection.Register(s)
	}
	return &Ops{srv: s, health: hs, deps: deps, opts: opts, log: log}
}

// Refresh checks every dependency once and publishes the combined status.
func (o *Ops) Refresh(ctx context.Context) {
	st := healthpb.HealthCheckResponse_SERVING
	for _, p := range o.deps {
		pctx, cancel := context.WithTimeout(ctx, o.opts.Interval/2)
		err := p.Check(pctx)
		cancel()
		if err != nil {
			o.log.Warn("dependency check failed", zap.String("dependency", p.Name), zap.Error(err))
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	o.health.SetServingStatus("", st)
	o.health.SetServingStatus(ServiceName, st)
}

// Serve blocks until ctx is done or the listener fails. On cancellation
// it marks everything NOT_SERVING and stops gracefully.
func (o *Ops) Serve(ctx context.Context, lis net.Listener) error {
	o.Refresh(ctx)

	errCh := make(chan error, 1)
	go func() {
		o.log.Info("ops listening", zap.String("addr", lis.Addr().String()))
		errCh <- o.srv.Serve(lis)
	}()

	tick := time.NewTicker(o.opts.Interval)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			o.Refresh(ctx)
		case err := <-errCh:
			if errors.Is(err, grpc.ErrServerStopped) {
				return nil
			}
			return err
		case <-ctx.Done():
			o.health.Shutdown()
			o.stop()
			return nil
		}
	}
}

func (o *Ops) stop() {
	done := make(chan struct{})
	go func() {
		o.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(o.opts.ShutdownTimeout):
		o.srv.Stop()
		<-done
	}
}
