package handler

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dappierto/ramp-dummy-app-sub000/internal/errors"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/policyrpc"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/service"
)

// GRPCHandler implements the ApprovalPolicyService gRPC interface
type GRPCHandler struct {
	service *service.ApprovalPolicyService
	logger  zerolog.Logger
}

var _ policyrpc.ApprovalPolicyServiceServer = (*GRPCHandler)(nil)

// NewGRPCHandler creates a new gRPC handler
func NewGRPCHandler(service *service.ApprovalPolicyService, logger zerolog.Logger) *GRPCHandler {
	return &GRPCHandler{
		service: service,
		logger:  logger.With().Str("handler", "grpc").Logger(),
	}
}

type resolveRequest struct {
	ProjectID string      `json:"project_id"`
	Amount    json.Number `json:"amount"`
}

// Resolve answers one (project, amount) query
func (h *GRPCHandler) Resolve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in resolveRequest
	if err := policyrpc.Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	h.logger.Info().
		Str("project_id", in.ProjectID).
		Str("amount", in.Amount.String()).
		Str("caller", caller(ctx)).
		Msg("gRPC Resolve called")

	amount, err := service.ParseAmount(in.Amount.String())
	if err != nil {
		return nil, mapErrorToGRPC(err)
	}

	result, err := h.service.Resolve(ctx, in.ProjectID, amount)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to resolve approver")
		return nil, mapErrorToGRPC(err)
	}
	return encode(result)
}

// BuildReport returns the project by breakpoint matrix
func (h *GRPCHandler) BuildReport(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	h.logger.Info().Str("caller", caller(ctx)).Msg("gRPC BuildReport called")

	report, err := h.service.BuildReport(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to build approval policy report")
		return nil, mapErrorToGRPC(err)
	}
	return encode(report)
}

// PreviewRule returns the matrix as it would look with the rule saved
func (h *GRPCHandler) PreviewRule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in service.UpsertRuleRequest
	if err := policyrpc.Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	h.logger.Info().
		Str("project_id", in.ProjectID).
		Str("caller", caller(ctx)).
		Msg("gRPC PreviewRule called")

	report, err := h.service.PreviewRule(ctx, &in)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to preview approval rule")
		return nil, mapErrorToGRPC(err)
	}
	return encode(report)
}

func encode(v any) (*structpb.Struct, error) {
	out, err := policyrpc.Encode(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// caller returns the x-caller metadata value, if any.
func caller(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(policyrpc.CallerMetadataKey); len(v) > 0 {
		return v[0]
	}
	return ""
}

// mapErrorToGRPC maps application error codes to gRPC status codes.
func mapErrorToGRPC(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	errMsg := errors.PublicMessage(err)

	switch errors.CodeOf(err) {
	case errors.ErrCodeInvalidInput:
		return status.Error(codes.InvalidArgument, errMsg)
	case errors.ErrCodeNotFound:
		return status.Error(codes.NotFound, errMsg)
	case errors.ErrCodeConflict:
		return status.Error(codes.AlreadyExists, errMsg)
	case errors.ErrCodeUnauthorized:
		return status.Error(codes.Unauthenticated, errMsg)
	case errors.ErrCodeUnavailable:
		return status.Error(codes.Unavailable, errMsg)
	default:
		return status.Error(codes.Internal, errMsg)
	}
}
