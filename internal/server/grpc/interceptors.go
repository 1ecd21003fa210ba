package grpcserver

import (
	"context"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/signflow/internal/metrics"
)

// callRecord is filled by inner interceptors so LoggingUnary can report the caller.
type callRecord struct{ userID string }

type callRecordKey struct{}

// LoggingUnary logs one line per call and counts it by method and code.
func LoggingUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		rec := &callRecord{}
		resp, err := next(context.WithValue(ctx, callRecordKey{}, rec), req)
		caller := rec.userID
		code := status.Code(err)
		metrics.RPC(info.FullMethod, code.String())

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", remoteIP(ctx)),
		}
		if caller != "" {
			fields = append(fields, zap.String("user_id", caller))
		}
		// metadata only, never payloads
		switch code {
		case codes.Internal, codes.Unavailable, codes.Unknown:
			log.Warn("grpc", fields...)
		default:
			log.Info("grpc", fields...)
		}
		return resp, err
	}
}

// RecoverUnary turns a handler panic into codes.Internal.
func RecoverUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("method", info.FullMethod),
				)
				err = status.Error(codes.Internal, "internal")
			}
		}()
		return next(ctx, req)
	}
}
