package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// authAPI is the stub surface GRPCClient relies on;
// *rpc.AuthServiceClient satisfies it.
type authAPI interface {
	Register(ctx context.Context, in *rpc.RegisterRequest, opts ...grpc.CallOption) (*rpc.AuthResponse, error)
	Login(ctx context.Context, in *rpc.LoginRequest, opts ...grpc.CallOption) (*rpc.AuthResponse, error)
	Refresh(ctx context.Context, in *rpc.RefreshRequest, opts ...grpc.CallOption) (*rpc.RefreshResponse, error)
	Logout(ctx context.Context, in *rpc.LogoutRequest, opts ...grpc.CallOption) (*rpc.LogoutResponse, error)
	Profile(ctx context.Context, in *rpc.ProfileRequest, opts ...grpc.CallOption) (*rpc.ProfileResponse, error)
	Ping(ctx context.Context, in *rpc.PingRequest, opts ...grpc.CallOption) (*rpc.PingResponse, error)
}

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      authAPI

	mu           sync.Mutex
	accessToken  string
	refreshToken string

	// OnTokens, when set, is called with every pair the server hands out.
	OnTokens func(accessToken, refreshToken string)
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	if token != "" {
		md.Set(common.AccessTokenHeaderName, token)
	}

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	access, refresh := s.Tokens()

	err := invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)
	if err == nil || method == rpc.MethodRefresh {
		return err
	}

	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	if st.Code() != codes.Unauthenticated || st.Message() != common.ErrTokenExpired.Error() {
		return err
	}
	if refresh == "" {
		return err
	}

	if _, rerr := s.Refresh(ctx); rerr != nil {
		return rerr
	}

	// retry once with the new access token
	access, _ = s.Tokens()
	return invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)
}

func NewAuthKeeperClient(endpointURL string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	conn, err := grpc.NewClient(s.endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor))
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = rpc.NewAuthServiceClient(conn)
	return nil
}

// Tokens returns the pair currently held.
func (s *GRPCClient) Tokens() (accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.refreshToken
}

// SetTokens replaces the held pair, e.g. with one restored from disk.
func (s *GRPCClient) SetTokens(accessToken, refreshToken string) {
	s.mu.Lock()
	s.accessToken, s.refreshToken = accessToken, refreshToken
	s.mu.Unlock()
}

func (s *GRPCClient) storeTokens(accessToken, refreshToken string) {
	s.SetTokens(accessToken, refreshToken)
	if s.OnTokens != nil {
		s.OnTokens(accessToken, refreshToken)
	}
}

func (s *GRPCClient) Register(ctx context.Context, email, firstName, lastName string, password []byte) (*rpc.User, error) {
	req := &rpc.RegisterRequest{Email: email, FirstName: firstName, LastName: lastName, Password: string(password)}

	resp, err := s.client.Register(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}

	s.storeTokens(resp.AccessToken, resp.RefreshToken)
	return &resp.User, nil
}

func (s *GRPCClient) Login(ctx context.Context, email string, password []byte) (*rpc.User, error) {
	req := &rpc.LoginRequest{Email: email, Password: string(password)}

	resp, err := s.client.Login(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}

	s.storeTokens(resp.AccessToken, resp.RefreshToken)
	return &resp.User, nil
}

// Refresh trades the held refresh token for a new pair. A rejected token
// clears the held pair: the session is gone either way.
func (s *GRPCClient) Refresh(ctx context.Context) (string, error) {
	_, refresh := s.Tokens()
	if refresh == "" {
		return "", ErrNotLoggedIn
	}

	resp, err := s.client.Refresh(ctx, &rpc.RefreshRequest{RefreshToken: refresh})
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == codes.PermissionDenied {
			s.storeTokens("", "")
		}
		return "", s.mapError(err)
	}

	s.storeTokens(resp.AccessToken, resp.RefreshToken)
	return resp.AccessToken, nil
}

func (s *GRPCClient) Logout(ctx context.Context) error {
	if access, _ := s.Tokens(); access == "" {
		return ErrNotLoggedIn
	}

	if _, err := s.client.Logout(ctx, &rpc.LogoutRequest{}); err != nil {
		return s.mapError(err)
	}

	s.storeTokens("", "")
	return nil
}

func (s *GRPCClient) Profile(ctx context.Context) (*rpc.User, error) {
	if access, _ := s.Tokens(); access == "" {
		return nil, ErrNotLoggedIn
	}

	resp, err := s.client.Profile(ctx, &rpc.ProfileRequest{})
	if err != nil {
		return nil, s.mapError(err)
	}
	return &resp.User, nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, &rpc.PingRequest{})
	if err != nil {
		return s.mapError(err)
	}

	if resp.Status != "OK" {
		return ErrUnavailable
	}

	return nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.InvalidArgument, codes.AlreadyExists, codes.NotFound:
		return fmt.Errorf("%w: %s", ErrRejected, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
