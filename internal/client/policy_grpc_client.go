package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dappierto/ramp-dummy-app-sub000/internal/policyrpc"
)

// PolicyGRPCClient is a gRPC client for ApprovalPolicyService
type PolicyGRPCClient struct {
	conn   *grpc.ClientConn
	client policyrpc.ApprovalPolicyServiceClient
}

var _ PolicyClientInterface = (*PolicyGRPCClient)(nil)

// NewPolicyGRPCClient creates a new approval policy gRPC client. Extra dial
// options are appended to the defaults.
func NewPolicyGRPCClient(addr string, opts ...grpc.DialOption) (*PolicyGRPCClient, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(propagateCaller),
	}, opts...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	return &PolicyGRPCClient{
		conn:   conn,
		client: policyrpc.NewApprovalPolicyServiceClient(conn),
	}, nil
}

// Close closes the gRPC connection
func (c *PolicyGRPCClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Resolve asks who must approve amount on a project
func (c *PolicyGRPCClient) Resolve(ctx context.Context, projectID, amount string) (*ResolveResponse, error) {
	req, err := structpb.NewStruct(map[string]any{
		"project_id": projectID,
		"amount":     amount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build resolve request: %w", err)
	}

	resp, err := c.client.Resolve(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve approver: %w", err)
	}

	var out ResolveResponse
	if err := policyrpc.Decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BuildReport fetches the full approval matrix
func (c *PolicyGRPCClient) BuildReport(ctx context.Context) (*ReportView, error) {
	resp, err := c.client.BuildReport(ctx, &structpb.Struct{})
	if err != nil {
		return nil, fmt.Errorf("failed to build report: %w", err)
	}
	return decodeReport(resp)
}

// PreviewRule fetches the matrix as it would look with rule saved
func (c *PolicyGRPCClient) PreviewRule(ctx context.Context, rule RuleInput) (*ReportView, error) {
	req, err := policyrpc.Encode(rule)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.PreviewRule(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to preview rule: %w", err)
	}
	return decodeReport(resp)
}

func decodeReport(resp *structpb.Struct) (*ReportView, error) {
	var out ReportView
	if err := policyrpc.Decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
