// Package policyrpc defines the approvals.v1.ApprovalPolicyService gRPC
// contract. Messages are google.protobuf.Struct values carrying the same JSON
// documents the HTTP API serves.
package policyrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "approvals.v1.ApprovalPolicyService"

// CallerMetadataKey carries the id of the user a call is made on behalf of.
const CallerMetadataKey = "x-caller"

const (
	ResolveFullMethodName     = "/" + ServiceName + "/Resolve"
	BuildReportFullMethodName = "/" + ServiceName + "/BuildReport"
	PreviewRuleFullMethodName = "/" + ServiceName + "/PreviewRule"
)

// ApprovalPolicyServiceServer is the server API for ApprovalPolicyService.
type ApprovalPolicyServiceServer interface {
	// Resolve takes {"project_id", "amount"} and returns one resolution.
	Resolve(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// BuildReport takes an empty struct and returns the full matrix.
	BuildReport(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// PreviewRule takes a rule and returns the matrix as if it were saved.
	PreviewRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterApprovalPolicyServiceServer registers srv on s.
func RegisterApprovalPolicyServiceServer(s grpc.ServiceRegistrar, srv ApprovalPolicyServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unaryHandler(fullMethod string, call func(ApprovalPolicyServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ApprovalPolicyServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ApprovalPolicyServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc is the grpc.ServiceDesc for ApprovalPolicyService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ApprovalPolicyServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Resolve",
			Handler:    unaryHandler(ResolveFullMethodName, ApprovalPolicyServiceServer.Resolve),
		},
		{
			MethodName: "BuildReport",
			Handler:    unaryHandler(BuildReportFullMethodName, ApprovalPolicyServiceServer.BuildReport),
		},
		{
			MethodName: "PreviewRule",
			Handler:    unaryHandler(PreviewRuleFullMethodName, ApprovalPolicyServiceServer.PreviewRule),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "approvals/v1/approval_policy.proto",
}

// ApprovalPolicyServiceClient is the client API for ApprovalPolicyService.
type ApprovalPolicyServiceClient interface {
	Resolve(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	BuildReport(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	PreviewRule(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type approvalPolicyServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewApprovalPolicyServiceClient(cc grpc.ClientConnInterface) ApprovalPolicyServiceClient {
	return &approvalPolicyServiceClient{cc}
}

func (c *approvalPolicyServiceClient) Resolve(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ResolveFullMethodName, in, opts...)
}

func (c *approvalPolicyServiceClient) BuildReport(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, BuildReportFullMethodName, in, opts...)
}

func (c *approvalPolicyServiceClient) PreviewRule(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, PreviewRuleFullMethodName, in, opts...)
}

func (c *approvalPolicyServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
