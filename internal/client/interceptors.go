package client

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/dappierto/ramp-dummy-app-sub000/internal/policyrpc"
)

// WithCaller attributes outgoing policy calls made with ctx to callerID.
func WithCaller(ctx context.Context, callerID string) context.Context {
	if callerID == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, policyrpc.CallerMetadataKey, callerID)
}

// propagateCaller is a unary client interceptor for services that proxy
// policy lookups: when the outgoing call names no caller, the caller of the
// incoming request is carried over. Other incoming metadata is not forwarded.
func propagateCaller(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	if out, _ := metadata.FromOutgoingContext(ctx); len(out.Get(policyrpc.CallerMetadataKey)) == 0 {
		if in, ok := metadata.FromIncomingContext(ctx); ok {
			if v := in.Get(policyrpc.CallerMetadataKey); len(v) > 0 {
				ctx = WithCaller(ctx, v[0])
			}
		}
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}
