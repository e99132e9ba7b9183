package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/billguard/internal/common"
)

const requestIDHeader = "x-request-id"

// UnaryLoggingInterceptor attaches a request id (from x-request-id or freshly minted) and logs each call.
func UnaryLoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get(requestIDHeader); len(ids) > 0 && ids[0] != "" {
				ctx = common.WithRequestID(ctx, ids[0])
			}
		}
		ctx, rid := common.EnsureRequestID(ctx)
		start := time.Now()

		resp, err := handler(ctx, req)

		code := status.Code(err)
		attrs := []any{
			"req_id", rid,
			"method", info.FullMethod,
			"code", code.String(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		}
		if err != nil {
			logger.Warn("grpc.request.error", append(attrs, "error", err)...)
		} else {
			logger.Info("grpc.request", attrs...)
		}
		return resp, err
	}
}
