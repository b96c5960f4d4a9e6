package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Sadman-Ilham/opencrvs-core/internal/client/models"
	"github.com/Sadman-Ilham/opencrvs-core/internal/common"
)

/*************
 * In-process registration service
 *************/

type fakeRegistration struct {
	mu      sync.Mutex
	methods []string
	lastReq map[string]*structpb.Struct
	lastMD  metadata.MD

	// handle answers one call; nil means an empty response.
	handle func(method string, req *structpb.Struct) (*structpb.Struct, error)
}

func (f *fakeRegistration) serve(ctx context.Context, method string, req *structpb.Struct) (any, error) {
	f.mu.Lock()
	f.methods = append(f.methods, method)
	if f.lastReq == nil {
		f.lastReq = map[string]*structpb.Struct{}
	}
	f.lastReq[method] = req
	f.lastMD, _ = metadata.FromIncomingContext(ctx)
	handle := f.handle
	f.mu.Unlock()

	if handle == nil {
		return &structpb.Struct{}, nil
	}
	return handle(method, req)
}

func (f *fakeRegistration) serviceDesc() *grpc.ServiceDesc {
	sd := &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*any)(nil),
	}
	for _, name := range []string{
		MethodCreate, MethodUpdate, MethodReject, MethodRegister,
		MethodCertify, MethodApprove, MethodSearch, MethodPing,
	} {
		sd.Methods = append(sd.Methods, grpc.MethodDesc{
			MethodName: name,
			Handler: func(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
				in := &structpb.Struct{}
				if err := dec(in); err != nil {
					return nil, err
				}
				return f.serve(ctx, name, in)
			},
		})
	}
	return sd
}

func startServer(t *testing.T, f *fakeRegistration) *GRPCClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	srv.RegisterService(f.serviceDesc(), f)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := NewGRPCClient("passthrough:///bufnet", "token-123",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func mustStruct(t *testing.T, v map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(v)
	require.NoError(t, err)
	return s
}

/*************
 * Submit / FetchTab / Ping
 *************/

func TestSubmit_RoutesKindAndDecodesAck(t *testing.T) {
	f := &fakeRegistration{}
	f.handle = func(method string, req *structpb.Struct) (*structpb.Struct, error) {
		return mustStruct(t, map[string]any{"compositionId": "42", "registrationStatus": "DECLARED"}), nil
	}
	c := startServer(t, f)

	payload := models.SubmissionPayload{
		DeclarationID: "A",
		Event:         models.EventBirth,
		Data:          models.Data{"child": {"firstNames": "Ada"}},
	}
	ack, err := c.Submit(context.Background(), models.KindCreate, payload)
	require.NoError(t, err)
	assert.Equal(t, "42", ack.CompositionID)
	assert.Equal(t, models.RegDeclared, ack.Status)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, []string{MethodCreate}, f.methods)
	req := f.lastReq[MethodCreate].AsMap()
	assert.Equal(t, "A", req["id"])
	assert.Equal(t, "birth", req["event"])
	assert.Equal(t, "Ada", req["data"].(map[string]any)["child"].(map[string]any)["firstNames"])
	assert.Equal(t, []string{"Bearer token-123"}, f.lastMD.Get(common.AccessTokenHeaderName))
}

func TestSubmit_EveryKindHasAMethod(t *testing.T) {
	f := &fakeRegistration{}
	c := startServer(t, f)

	kinds := []models.OperationKind{
		models.KindCreate, models.KindUpdate, models.KindReject,
		models.KindRegister, models.KindCertify, models.KindApprove,
	}
	for _, k := range kinds {
		_, err := c.Submit(context.Background(), k, models.SubmissionPayload{DeclarationID: "A"})
		require.NoError(t, err, k)
	}
	f.mu.Lock()
	assert.Len(t, f.methods, len(kinds))
	f.mu.Unlock()

	_, err := c.Submit(context.Background(), models.OperationKind("DELETE"), models.SubmissionPayload{})
	require.Error(t, err)
}

func TestFetchTab_KeepsNullRows(t *testing.T) {
	f := &fakeRegistration{}
	f.handle = func(method string, req *structpb.Struct) (*structpb.Struct, error) {
		return mustStruct(t, map[string]any{
			"results": []any{
				map[string]any{"id": "A", "compositionId": "1", "registrationStatus": "DECLARED"},
				nil,
				map[string]any{"id": "B"},
			},
			"totalItems": 7,
		}), nil
	}
	c := startServer(t, f)

	page, err := c.FetchTab(context.Background(), models.TabQuery{
		LocationIDs: []string{"loc-1"},
		Statuses:    []models.RegStatus{models.RegDeclared, models.RegValidated},
		Skip:        10,
		Count:       10,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, page.TotalItems)
	require.Len(t, page.Results, 3)
	assert.Equal(t, "A", page.Results[0].ID)
	assert.Equal(t, models.RegDeclared, page.Results[0].Status)
	assert.Nil(t, page.Results[1])

	f.mu.Lock()
	req := f.lastReq[MethodSearch].AsMap()
	f.mu.Unlock()
	assert.Equal(t, []any{"DECLARED", "VALIDATED"}, req["status"])
	assert.Equal(t, float64(10), req["skip"])
}

func TestPing(t *testing.T) {
	f := &fakeRegistration{}
	f.handle = func(method string, req *structpb.Struct) (*structpb.Struct, error) {
		return mustStruct(t, map[string]any{"status": "OK"}), nil
	}
	c := startServer(t, f)
	require.NoError(t, c.Ping(context.Background()))

	f.mu.Lock()
	f.handle = func(string, *structpb.Struct) (*structpb.Struct, error) {
		return mustStruct(t, map[string]any{"status": "DEGRADED"}), nil
	}
	f.mu.Unlock()
	require.ErrorIs(t, c.Ping(context.Background()), ErrUnavailable)
}

func TestSubmit_ClassifiesServerErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      int
		permanent bool
	}{
		{"validation", status.Error(codes.InvalidArgument, "child.dob required"), 400, true},
		{"forbidden", status.Error(codes.PermissionDenied, "scope"), 403, true},
		{"conflict", status.Error(codes.AlreadyExists, "dup"), 409, true},
		{"internal", status.Error(codes.Internal, "boom"), 500, false},
		{"unavailable", status.Error(codes.Unavailable, "down"), 503, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeRegistration{handle: func(string, *structpb.Struct) (*structpb.Struct, error) {
				return nil, tc.err
			}}
			c := startServer(t, f)

			_, err := c.Submit(context.Background(), models.KindRegister, models.SubmissionPayload{DeclarationID: "A"})
			var remote *RemoteError
			require.ErrorAs(t, err, &remote)
			assert.Equal(t, tc.code, remote.StatusCode)
			assert.Equal(t, tc.permanent, IsPermanent(err))
			assert.Equal(t, !tc.permanent, IsTransient(err))
		})
	}
}

/*************
 * mapError / interceptor
 *************/

func TestMapError(t *testing.T) {
	require.NoError(t, mapError(nil))

	netErr := mapError(errors.New("connection refused"))
	require.ErrorIs(t, netErr, common.ErrTransientNetworkFailure)

	cancelled := mapError(status.Error(codes.Canceled, "context canceled"))
	require.ErrorIs(t, cancelled, context.Canceled)
	require.False(t, IsTransient(cancelled))
	require.False(t, IsPermanent(cancelled))

	timeout := mapError(status.Error(codes.DeadlineExceeded, "slow"))
	require.True(t, IsTransient(timeout))

	unknown := mapError(status.Error(codes.Code(99), "?"))
	var remote *RemoteError
	require.ErrorAs(t, unknown, &remote)
	require.Equal(t, 500, remote.StatusCode)
}

func TestInterceptor_SkipsEmptyToken(t *testing.T) {
	c := &GRPCClient{}
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		require.Empty(t, md.Get(common.AccessTokenHeaderName))
		return nil
	}
	require.NoError(t, c.accessTokenInterceptor(context.Background(), "/svc/M", nil, nil, nil, invoker))
}
