package grpcserver

import (
	"context"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// LoggingUnary logs one line per call. Failed calls are logged at warn level.
// Successful calls to a quiet method, such as the orchestrator's periodic
// health check, drop to debug.
func LoggingUnary(log *zap.Logger, quiet ...string) grpc.UnaryServerInterceptor {
	muted := make(map[string]bool, len(quiet))
	for _, m := range quiet {
		muted[m] = true
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		code := status.Code(err)

		lvl := zapcore.InfoLevel
		switch {
		case code != codes.OK:
			lvl = zapcore.WarnLevel
		case muted[info.FullMethod]:
			lvl = zapcore.DebugLevel
		}
		if ce := log.Check(lvl, "grpc"); ce != nil {
			// metadata only, never payloads
			ce.Write(
				zap.String("method", info.FullMethod),
				zap.String("code", code.String()),
				zap.Duration("dur", time.Since(start)),
				zap.String("peer", peerAddr(ctx)),
			)
		}
		return resp, err
	}
}

// RecoverUnary converts a handler panic into codes.Internal.
func RecoverUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		defer recoverTo(log, info.FullMethod, &err)
		return next(ctx, req)
	}
}

// RecoverStream does the same for streams such as health Watch.
func RecoverStream(log *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, next grpc.StreamHandler) (err error) {
		defer recoverTo(log, info.FullMethod, &err)
		return next(srv, ss)
	}
}

func recoverTo(log *zap.Logger, method string, err *error) {
	if r := recover(); r != nil {
		log.Error("panic",
			zap.Any("reason", r),
			zap.ByteString("stack", debug.Stack()),
			zap.String("method", method),
		)
		*err = status.Error(codes.Internal, "internal")
	}
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}
