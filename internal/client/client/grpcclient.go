package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const defaultCallTimeout = 10 * time.Second

type GRPCClient struct {
	endpointURL string
	callTimeout time.Duration
	conn        *grpc.ClientConn

	mu          sync.RWMutex
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if token := s.token(); token != "" {
		ctx = withAccessToken(ctx, token)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewGRPCClient prepares a lazy connection to endpointURL. Extra dial options
// are appended after the defaults.
func NewGRPCClient(endpointURL string, callTimeout time.Duration, opts ...grpc.DialOption) (*GRPCClient, error) {
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	c := &GRPCClient{endpointURL: endpointURL, callTimeout: callTimeout}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (s *GRPCClient) token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// SetAccessToken installs a token restored from a previous session.
func (s *GRPCClient) SetAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = token
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) call(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	out, err := rpc.Invoke(ctx, s.conn, method, in)
	if err != nil {
		return nil, s.mapError(err)
	}
	return out, nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.call(ctx, rpc.MethodPing, &structpb.Struct{})
	if err != nil {
		return err
	}
	if rpc.String(resp, rpc.FieldStatus) != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) Register(ctx context.Context, username string, password []byte) error {
	_, err := s.call(ctx, rpc.MethodRegister, rpc.NewCredentials(username, password))
	return err
}

func (s *GRPCClient) Login(ctx context.Context, username string, password []byte) (*LoginResult, error) {
	resp, err := s.call(ctx, rpc.MethodLogin, rpc.NewCredentials(username, password))
	if err != nil {
		return nil, err
	}

	result := &LoginResult{
		AccessToken: rpc.String(resp, rpc.FieldAccessToken),
		Admin:       rpc.Bool(resp, rpc.FieldAdmin),
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("login response: %w", rpc.ErrMalformed)
	}
	s.SetAccessToken(result.AccessToken)
	return result, nil
}

func (s *GRPCClient) Create(ctx context.Context, table string, payload json.RawMessage) (*models.Record, error) {
	req, err := rpc.NewCreateRequest(table, payload)
	if err != nil {
		return nil, err
	}
	resp, err := s.call(ctx, rpc.MethodCreate, req)
	if err != nil {
		return nil, err
	}
	return decodeRecord(table, resp)
}

func (s *GRPCClient) Update(ctx context.Context, table, id string, payload json.RawMessage) (*models.Record, error) {
	req, err := rpc.NewUpdateRequest(table, id, payload)
	if err != nil {
		return nil, err
	}
	resp, err := s.call(ctx, rpc.MethodUpdate, req)
	if err != nil {
		return nil, err
	}
	return decodeRecord(table, resp)
}

func (s *GRPCClient) Delete(ctx context.Context, table, id string) error {
	_, err := s.call(ctx, rpc.MethodDelete, rpc.NewKeyRequest(table, id))
	return err
}

func (s *GRPCClient) ListChanged(ctx context.Context, table string, since time.Time) ([]*models.Record, error) {
	resp, err := s.call(ctx, rpc.MethodListChanged, rpc.NewListRequest(table, since))
	if err != nil {
		return nil, err
	}
	return decodeRecords(table, resp)
}

func (s *GRPCClient) ListAll(ctx context.Context, table string) ([]*models.Record, error) {
	resp, err := s.call(ctx, rpc.MethodListAll, rpc.NewListRequest(table, time.Time{}))
	if err != nil {
		return nil, err
	}
	return decodeRecords(table, resp)
}

func toModel(table string, r rpc.Record) *models.Record {
	return &models.Record{
		ID:          r.ID,
		Table:       table,
		Payload:     r.Payload,
		LastUpdated: r.LastUpdated,
		SyncStatus:  models.StatusSynced,
	}
}

func decodeRecord(table string, resp *structpb.Struct) (*models.Record, error) {
	r, err := rpc.ParseRecord(resp)
	if err != nil {
		return nil, fmt.Errorf("decode %s record: %w", table, err)
	}
	return toModel(table, r), nil
}

func decodeRecords(table string, resp *structpb.Struct) ([]*models.Record, error) {
	list, err := rpc.ParseRecordList(resp)
	if err != nil {
		return nil, fmt.Errorf("decode %s records: %w", table, err)
	}
	out := make([]*models.Record, 0, len(list))
	for _, r := range list {
		out = append(out, toModel(table, r))
	}
	return out, nil
}

func (s *GRPCClient) mapError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.InvalidArgument, codes.NotFound, codes.FailedPrecondition, codes.AlreadyExists:
		return fmt.Errorf("%w: %s", ErrRejected, st.Message())
	default:
		return err
	}
}
