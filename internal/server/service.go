// File: service.go
// Title: Query Service
// Description: Serves the language engine over gRPC. Rejected inputs are
//              returned as status errors whose details carry the input.
// Author: msto63
// Version: v0.1.0
// Created: 2025-03-10
// Modified: 2025-03-10
//
// Change History:
// - 2025-03-10 v0.1.0: Initial implementation

package server

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"
	"google.golang.org/protobuf/types/known/structpb"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
	mdwlog "github.com/msto63/iguana/foundation/core/log"
	"github.com/msto63/iguana/internal/engine"
	"github.com/msto63/iguana/internal/lang/scan"
	"github.com/msto63/iguana/internal/model"
	"github.com/msto63/iguana/internal/repository"
	"github.com/msto63/iguana/internal/search/frontend"
	grpcx "github.com/msto63/iguana/pkg/core/grpc"
)

// Engine is the part of the language engine offered to remote clients
type Engine interface {
	Search(ctx context.Context, expression string, user model.UserRef) (*frontend.Response, error)
	QuickAdd(ctx context.Context, req engine.QuickAddRequest, user model.UserRef) (*engine.QuickAddResult, error)
	Tokenize(language, input string) ([]scan.Token, error)
}

// rejected is an error that hands the rejected input back
type rejected interface {
	error
	Expression() string
	Code() mdwerror.Code
}

// Service implements QueryServiceServer on top of an Engine
type Service struct {
	engine Engine
	users  repository.UserDirectory
	logger *mdwlog.Logger
}

// NewService creates the query service. Without a user directory every
// request runs anonymously.
func NewService(e Engine, users repository.UserDirectory, logger *mdwlog.Logger) *Service {
	if logger == nil {
		logger = mdwlog.GetDefault()
	}
	return &Service{engine: e, users: users, logger: logger.WithField("component", "query-service")}
}

var _ QueryServiceServer = (*Service)(nil)

// Search implements QueryServiceServer
func (s *Service) Search(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req SearchRequest
	if err := decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	user, err := s.lookupUser(ctx, req.User)
	if err != nil {
		return nil, err
	}
	resp, err := s.engine.Search(ctx, req.Expression, user)
	if err != nil {
		return nil, statusError(err)
	}
	return encode(newSearchReply(resp))
}

// QuickAdd implements QueryServiceServer
func (s *Service) QuickAdd(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req QuickAddRequest
	if err := decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	user, err := s.lookupUser(ctx, req.User)
	if err != nil {
		return nil, err
	}
	result, err := s.engine.QuickAdd(ctx, engine.QuickAddRequest{
		Line:    req.Line,
		Project: req.Project,
		Sprint:  req.Sprint,
	}, user)
	if err != nil {
		return nil, statusError(err)
	}
	return encode(newQuickAddReply(result))
}

// Tokenize implements QueryServiceServer
func (s *Service) Tokenize(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req TokenizeRequest
	if err := decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	tokens, err := s.engine.Tokenize(req.Language, req.Input)
	if err != nil {
		return nil, statusError(err)
	}
	return encode(NewTokenizeReply(tokens))
}

func (s *Service) lookupUser(ctx context.Context, name string) (model.UserRef, error) {
	if name == "" || s.users == nil {
		return model.UserRef{}, nil
	}
	user, err := s.users.LookupUser(ctx, name)
	if err != nil {
		s.logger.Warn("request for unknown user", mdwlog.Fields{"user": name})
		return model.UserRef{}, status.Errorf(codes.Unauthenticated, "unknown user %q", name)
	}
	return user, nil
}

// statusError converts err to a status error. Rejected inputs keep their
// code and expression in a Struct detail; other errors are mapped by the
// error code interceptor.
func statusError(err error) error {
	var rej rejected
	if !errors.As(err, &rej) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	st := status.New(grpcx.StatusCode(rej.Code()), err.Error())
	detail, derr := encode(ErrorPayload{
		Code:       string(rej.Code()),
		Message:    err.Error(),
		Expression: rej.Expression(),
	})
	if derr != nil {
		return st.Err()
	}
	if withDetail, derr := st.WithDetails(protoadapt.MessageV1Of(detail)); derr == nil {
		st = withDetail
	}
	return st.Err()
}

// RejectedInput extracts the error payload of a rejected input from a
// status error returned by Client
func RejectedInput(err error) (ErrorPayload, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return ErrorPayload{}, false
	}
	for _, d := range st.Details() {
		if detail, ok := d.(*structpb.Struct); ok {
			var payload ErrorPayload
			if decode(detail, &payload) == nil && payload.Code != "" {
				return payload, true
			}
		}
	}
	return ErrorPayload{}, false
}
