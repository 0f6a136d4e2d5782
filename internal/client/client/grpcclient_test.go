package client

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

// fakeServer answers from canned values and records what it received.
type fakeServer struct {
	rpc.RecordServiceServer

	mu       sync.Mutex
	tokens   []string
	requests map[string]*structpb.Struct

	pingStatus string
	err        error
	records    []rpc.Record
}

func (f *fakeServer) seen(ctx context.Context, method string, in *structpb.Struct) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.requests == nil {
		f.requests = map[string]*structpb.Struct{}
	}
	f.requests[method] = in
	md, _ := metadata.FromIncomingContext(ctx)
	f.tokens = append(f.tokens, md.Get(common.AccessTokenHeaderName)...)
}

func (f *fakeServer) request(method string) *structpb.Struct {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[method]
}

func (f *fakeServer) Ping(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.seen(ctx, rpc.MethodPing, in)
	return rpc.NewStatus(f.pingStatus), f.err
}

func (f *fakeServer) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.seen(ctx, rpc.MethodLogin, in)
	if f.err != nil {
		return nil, f.err
	}
	return rpc.NewLoginResponse("token-1", rpc.String(in, rpc.FieldUsername) == "admin"), nil
}

func (f *fakeServer) Register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.seen(ctx, rpc.MethodRegister, in)
	return &structpb.Struct{}, f.err
}

func (f *fakeServer) Create(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.seen(ctx, rpc.MethodCreate, in)
	if f.err != nil {
		return nil, f.err
	}
	payload, _ := rpc.Payload(in)
	return rpc.NewRecordStruct(rpc.Record{ID: "SRV-1", Payload: payload, LastUpdated: time.Unix(50, 0)})
}

func (f *fakeServer) Update(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.seen(ctx, rpc.MethodUpdate, in)
	if f.err != nil {
		return nil, f.err
	}
	payload, _ := rpc.Payload(in)
	return rpc.NewRecordStruct(rpc.Record{ID: rpc.String(in, rpc.FieldID), Payload: payload, LastUpdated: time.Unix(60, 0)})
}

func (f *fakeServer) Delete(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.seen(ctx, rpc.MethodDelete, in)
	return &structpb.Struct{}, f.err
}

func (f *fakeServer) ListChanged(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.seen(ctx, rpc.MethodListChanged, in)
	if f.err != nil {
		return nil, f.err
	}
	return rpc.NewRecordListStruct(f.records)
}

func (f *fakeServer) ListAll(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.seen(ctx, rpc.MethodListAll, in)
	if f.err != nil {
		return nil, f.err
	}
	return rpc.NewRecordListStruct(f.records)
}

func newTestClient(t *testing.T, srv *fakeServer) *GRPCClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	rpc.RegisterRecordServiceServer(gs, srv)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	c, err := NewGRPCClient("passthrough:///bufnet", time.Second,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPing(t *testing.T) {
	srv := &fakeServer{pingStatus: "OK"}
	c := newTestClient(t, srv)

	require.NoError(t, c.Ping(context.Background()))

	srv.pingStatus = "DEGRADED"
	require.ErrorIs(t, c.Ping(context.Background()), ErrUnavailable)
}

func TestLogin_StoresTokenAndAttachesIt(t *testing.T) {
	srv := &fakeServer{pingStatus: "OK"}
	c := newTestClient(t, srv)
	ctx := context.Background()

	res, err := c.Login(ctx, "admin", []byte("pw"))
	require.NoError(t, err)
	assert.Equal(t, "token-1", res.AccessToken)
	assert.True(t, res.Admin)

	require.NoError(t, c.Ping(ctx))

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, []string{"token-1"}, srv.tokens, "login itself goes out without a token")
}

func TestCreateUpdateDelete(t *testing.T) {
	srv := &fakeServer{}
	c := newTestClient(t, srv)
	ctx := context.Background()

	created, err := c.Create(ctx, "orders", json.RawMessage(`{"qty":2}`))
	require.NoError(t, err)
	assert.Equal(t, "SRV-1", created.ID)
	assert.Equal(t, "orders", created.Table)
	assert.Equal(t, models.StatusSynced, created.SyncStatus)
	assert.JSONEq(t, `{"qty":2}`, string(created.Payload))
	assert.Equal(t, "orders", rpc.String(srv.request(rpc.MethodCreate), rpc.FieldTable))

	updated, err := c.Update(ctx, "orders", "PO-2025-001", json.RawMessage(`{"qty":3}`))
	require.NoError(t, err)
	assert.Equal(t, "PO-2025-001", updated.ID)
	assert.Equal(t, int64(60), updated.LastUpdated.Unix())

	require.NoError(t, c.Delete(ctx, "orders", "PO-9"))
	assert.Equal(t, "PO-9", rpc.String(srv.request(rpc.MethodDelete), rpc.FieldID))
}

func TestListChangedAndListAll(t *testing.T) {
	srv := &fakeServer{records: []rpc.Record{
		{ID: "SRV-2", Payload: json.RawMessage(`{"a":1}`), LastUpdated: time.Unix(70, 0)},
	}}
	c := newTestClient(t, srv)
	ctx := context.Background()
	since := time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC)

	changed, err := c.ListChanged(ctx, "crops", since)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, "crops", changed[0].Table)
	assert.Equal(t, models.StatusSynced, changed[0].SyncStatus)

	gotSince, err := rpc.Time(srv.request(rpc.MethodListChanged), rpc.FieldSince)
	require.NoError(t, err)
	assert.True(t, since.Equal(gotSince))

	all, err := c.ListAll(ctx, "crops")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "unavailable", err: status.Error(codes.Unavailable, "down"), want: ErrUnavailable},
		{name: "deadline", err: status.Error(codes.DeadlineExceeded, "slow"), want: ErrUnavailable},
		{name: "unauthenticated", err: status.Error(codes.Unauthenticated, "missing token"), want: ErrUnauthorized},
		{name: "invalid argument", err: status.Error(codes.InvalidArgument, "bad payload"), want: ErrRejected},
		{name: "not found", err: status.Error(codes.NotFound, "no such record"), want: ErrRejected},
		{name: "already exists", err: status.Error(codes.AlreadyExists, "dup"), want: ErrRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, &fakeServer{err: tt.err})
			_, err := c.Create(context.Background(), "orders", json.RawMessage(`{}`))
			require.ErrorIs(t, err, tt.want)
		})
	}

	c := &GRPCClient{}
	plain := errors.New("plain")
	assert.Same(t, plain, c.mapError(plain))
	assert.Equal(t, codes.Internal, status.Code(c.mapError(status.Error(codes.Internal, "boom"))))
}
