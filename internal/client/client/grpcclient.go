package client

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Sadman-Ilham/opencrvs-core/internal/client/models"
	"github.com/Sadman-Ilham/opencrvs-core/internal/common"
)

// ServiceName is the fully qualified name of the remote service.
const ServiceName = "opencrvs.registration.v1.RegistrationService"

// Method names of ServiceName.
const (
	MethodCreate   = "CreateDeclaration"
	MethodUpdate   = "UpdateDeclaration"
	MethodReject   = "RejectDeclaration"
	MethodRegister = "RegisterDeclaration"
	MethodCertify  = "CertifyDeclaration"
	MethodApprove  = "ApproveDeclaration"
	MethodSearch   = "SearchTab"
	MethodPing     = "Ping"
)

var methodByKind = map[models.OperationKind]string{
	models.KindCreate:   MethodCreate,
	models.KindUpdate:   MethodUpdate,
	models.KindReject:   MethodReject,
	models.KindRegister: MethodRegister,
	models.KindCertify:  MethodCertify,
	models.KindApprove:  MethodApprove,
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// conn is the part of *grpc.ClientConn used by GRPCClient.
type conn interface {
	Invoke(ctx context.Context, method string, args any, reply any, opts ...grpc.CallOption) error
	Close() error
}

type GRPCClient struct {
	endpointURL string
	accessToken string
	conn        conn
}

var _ Gateway = (*GRPCClient)(nil)

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, "Bearer "+token)
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
	if s.accessToken != "" {
		ctx = withAccessToken(ctx, s.accessToken)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewGRPCClient connects lazily to endpointURL. Extra dial options are
// appended after the defaults.
func NewGRPCClient(endpointURL, accessToken string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, accessToken: accessToken}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	cc, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpointURL, err)
	}
	c.conn = cc
	return c, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

// call marshals in through JSON into a Struct, invokes method and decodes
// the Struct reply into out.
func (s *GRPCClient) call(ctx context.Context, method string, in any, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}
	req := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, req); err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}

	resp := &structpb.Struct{}
	if err := s.conn.Invoke(ctx, fullMethod(method), req, resp); err != nil {
		return mapError(err)
	}

	if out == nil {
		return nil
	}
	body, err := protojson.Marshal(resp)
	if err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		// the server answered, but not in a shape we understand
		return &RemoteError{StatusCode: 502, Body: fmt.Sprintf("decode %s response: %v", method, err)}
	}
	return nil
}

func (s *GRPCClient) Submit(ctx context.Context, kind models.OperationKind, payload models.SubmissionPayload) (*models.SubmissionAck, error) {
	method, ok := methodByKind[kind]
	if !ok {
		return nil, fmt.Errorf("unknown operation kind %q", kind)
	}

	var ack models.SubmissionAck
	if err := s.call(ctx, method, payload, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

func (s *GRPCClient) FetchTab(ctx context.Context, query models.TabQuery) (*models.TabPage, error) {
	var page models.TabPage
	if err := s.call(ctx, MethodSearch, query, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := s.call(ctx, MethodPing, struct{}{}, &resp); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}
