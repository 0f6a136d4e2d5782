package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/rpc"
	"github.com/dmitrijs2005/offsync/internal/server/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// toStatus maps service errors to gRPC status codes. Unknown errors are
// logged and reported as Internal without detail.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrorInvalidInput), errors.Is(err, rpc.ErrMalformed):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrorAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	s.logger.Error(ctx, "internal error", "error", err)
	return status.Error(codes.Internal, "internal error")
}

func toWire(r *models.Record) rpc.Record {
	return rpc.Record{ID: r.ID, Payload: r.Payload, LastUpdated: r.LastUpdated}
}

func (s *GRPCServer) recordResponse(ctx context.Context, r *models.Record, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	out, err := rpc.NewRecordStruct(toWire(r))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return out, nil
}

func (s *GRPCServer) listResponse(ctx context.Context, rs []*models.Record, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	wire := make([]rpc.Record, 0, len(rs))
	for _, r := range rs {
		wire = append(wire, toWire(r))
	}
	out, err := rpc.NewRecordListStruct(wire)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return out, nil
}

func userID(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}

func (s *GRPCServer) Ping(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return rpc.NewStatus("OK"), nil
}

func (s *GRPCServer) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	username := rpc.String(req, rpc.FieldUsername)

	s.logger.Info(ctx, "Registration request", "username", username)

	u, err := s.users.Register(ctx, username, []byte(rpc.String(req, rpc.FieldPassword)))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Registered", "username", username, "admin", u.Admin)
	return rpc.NewStatus("registered"), nil
}

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	username := rpc.String(req, rpc.FieldUsername)

	res, err := s.users.Login(ctx, username, []byte(rpc.String(req, rpc.FieldPassword)))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return rpc.NewLoginResponse(res.AccessToken, res.Admin), nil
}

func (s *GRPCServer) Create(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	payload, err := rpc.Payload(req)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	r, err := s.records.Create(ctx, userID(ctx), rpc.String(req, rpc.FieldTable), payload)
	return s.recordResponse(ctx, r, err)
}

func (s *GRPCServer) Update(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	payload, err := rpc.Payload(req)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	r, err := s.records.Update(ctx, userID(ctx), rpc.String(req, rpc.FieldTable), rpc.String(req, rpc.FieldID), payload)
	return s.recordResponse(ctx, r, err)
}

func (s *GRPCServer) Delete(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.records.Delete(ctx, rpc.String(req, rpc.FieldTable), rpc.String(req, rpc.FieldID)); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return rpc.NewStatus("deleted"), nil
}

func (s *GRPCServer) ListChanged(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	since, err := rpc.Time(req, rpc.FieldSince)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	rs, err := s.records.ListChanged(ctx, rpc.String(req, rpc.FieldTable), since)
	return s.listResponse(ctx, rs, err)
}

func (s *GRPCServer) ListAll(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	rs, err := s.records.ListAll(ctx, rpc.String(req, rpc.FieldTable))
	return s.listResponse(ctx, rs, err)
}
