package client

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

/*************
 * Fake rpc client
 *************/

type fakeRPC struct {
	lastRegisterReq *rpc.RegisterRequest
	lastLoginReq    *rpc.LoginRequest
	lastRefreshReq  *rpc.RefreshRequest

	authResp *rpc.AuthResponse
	authErr  error

	refreshResp *rpc.RefreshResponse
	refreshErr  error

	logoutErr error

	profileResp *rpc.ProfileResponse
	profileErr  error

	pingResp *rpc.PingResponse
	pingErr  error
}

func (f *fakeRPC) Register(_ context.Context, in *rpc.RegisterRequest, _ ...grpc.CallOption) (*rpc.AuthResponse, error) {
	f.lastRegisterReq = in
	return f.authResp, f.authErr
}
func (f *fakeRPC) Login(_ context.Context, in *rpc.LoginRequest, _ ...grpc.CallOption) (*rpc.AuthResponse, error) {
	f.lastLoginReq = in
	return f.authResp, f.authErr
}
func (f *fakeRPC) Refresh(_ context.Context, in *rpc.RefreshRequest, _ ...grpc.CallOption) (*rpc.RefreshResponse, error) {
	f.lastRefreshReq = in
	return f.refreshResp, f.refreshErr
}
func (f *fakeRPC) Logout(context.Context, *rpc.LogoutRequest, ...grpc.CallOption) (*rpc.LogoutResponse, error) {
	return &rpc.LogoutResponse{Message: "logout successful"}, f.logoutErr
}
func (f *fakeRPC) Profile(context.Context, *rpc.ProfileRequest, ...grpc.CallOption) (*rpc.ProfileResponse, error) {
	return f.profileResp, f.profileErr
}
func (f *fakeRPC) Ping(context.Context, *rpc.PingRequest, ...grpc.CallOption) (*rpc.PingResponse, error) {
	return f.pingResp, f.pingErr
}

func expired() error {
	return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
}

/*************
 * accessTokenInterceptor tests
 *************/

func TestInterceptor_RefreshesTokenOnExpiredAndRetries(t *testing.T) {
	f := &fakeRPC{refreshResp: &rpc.RefreshResponse{AccessToken: "A2", RefreshToken: "R2"}}
	c := &GRPCClient{client: f, accessToken: "A1", refreshToken: "R1"}

	var saved []string
	c.OnTokens = func(a, r string) { saved = append(saved, a, r) }

	callCount := 0
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		callCount++
		md, _ := metadata.FromOutgoingContext(ctx)
		toks := md.Get(common.AccessTokenHeaderName)
		require.Len(t, toks, 1)

		if callCount == 1 {
			require.Equal(t, "A1", toks[0])
			return expired()
		}
		require.Equal(t, "A2", toks[0])
		return nil
	}

	err := c.accessTokenInterceptor(context.Background(), rpc.MethodProfile, nil, nil, nil, invoker)
	require.NoError(t, err)
	require.Equal(t, 2, callCount)
	require.Equal(t, "R1", f.lastRefreshReq.RefreshToken)

	a, r := c.Tokens()
	assert.Equal(t, "A2", a)
	assert.Equal(t, "R2", r)
	assert.Equal(t, []string{"A2", "R2"}, saved)
}

func TestInterceptor_NoRefreshIfNoRefreshToken(t *testing.T) {
	f := &fakeRPC{}
	c := &GRPCClient{client: f, accessToken: "A1"}

	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return expired()
	}

	err := c.accessTokenInterceptor(context.Background(), rpc.MethodProfile, nil, nil, nil, invoker)
	require.Error(t, err)
	require.Nil(t, f.lastRefreshReq)
}

func TestInterceptor_IgnoresOtherErrors(t *testing.T) {
	f := &fakeRPC{}
	c := &GRPCClient{client: f, accessToken: "A1", refreshToken: "R1"}

	for _, e := range []error{
		errors.New("plain"),
		status.Error(codes.Internal, "boom"),
		status.Error(codes.Unauthenticated, "unauthorized"),
	} {
		invoker := func(context.Context, string, interface{}, interface{}, *grpc.ClientConn, ...grpc.CallOption) error {
			return e
		}
		err := c.accessTokenInterceptor(context.Background(), rpc.MethodProfile, nil, nil, nil, invoker)
		require.Equal(t, e, err)
	}
	require.Nil(t, f.lastRefreshReq)
}

func TestInterceptor_DoesNotRefreshTheRefreshCall(t *testing.T) {
	f := &fakeRPC{}
	c := &GRPCClient{client: f, accessToken: "A1", refreshToken: "R1"}

	invoker := func(context.Context, string, interface{}, interface{}, *grpc.ClientConn, ...grpc.CallOption) error {
		return expired()
	}
	err := c.accessTokenInterceptor(context.Background(), rpc.MethodRefresh, nil, nil, nil, invoker)
	require.Error(t, err)
	require.Nil(t, f.lastRefreshReq)
}

func TestInterceptor_NoTokenSendsNoHeader(t *testing.T) {
	c := &GRPCClient{client: &fakeRPC{}}
	invoker := func(ctx context.Context, _ string, _, _ interface{}, _ *grpc.ClientConn, _ ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		require.Empty(t, md.Get(common.AccessTokenHeaderName))
		return nil
	}
	require.NoError(t, c.accessTokenInterceptor(context.Background(), rpc.MethodPing, nil, nil, nil, invoker))
}

func TestMapError(t *testing.T) {
	c := &GRPCClient{}

	require.NoError(t, c.mapError(nil))
	require.ErrorIs(t, c.mapError(status.Error(codes.Unauthenticated, "x")), ErrUnauthorized)
	require.ErrorIs(t, c.mapError(status.Error(codes.PermissionDenied, "x")), ErrUnauthorized)
	require.ErrorIs(t, c.mapError(status.Error(codes.Unavailable, "x")), ErrUnavailable)
	require.ErrorIs(t, c.mapError(status.Error(codes.DeadlineExceeded, "x")), ErrUnavailable)

	err := c.mapError(status.Error(codes.AlreadyExists, "email already exists"))
	require.ErrorIs(t, err, ErrRejected)
	require.Contains(t, err.Error(), "email already exists")

	err = c.mapError(status.Error(codes.Internal, "internal server error"))
	require.NotErrorIs(t, err, ErrUnauthorized)
	require.Contains(t, err.Error(), "rpc error")
}

func TestLogin_SetsTokens(t *testing.T) {
	f := &fakeRPC{authResp: &rpc.AuthResponse{User: rpc.User{ID: "u-1"}, AccessToken: "A", RefreshToken: "R"}}
	c := &GRPCClient{client: f}

	var saved bool
	c.OnTokens = func(string, string) { saved = true }

	u, err := c.Login(context.Background(), "alice@example.com", []byte("pw"))
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, "pw", f.lastLoginReq.Password)
	assert.True(t, saved)

	a, r := c.Tokens()
	assert.Equal(t, "A", a)
	assert.Equal(t, "R", r)
}

func TestRegister_MapsError(t *testing.T) {
	f := &fakeRPC{authErr: status.Error(codes.InvalidArgument, "email must be an email")}
	c := &GRPCClient{client: f}

	_, err := c.Register(context.Background(), "nope", "Alice", "Liddell", []byte("pw"))
	require.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, "nope", f.lastRegisterReq.Email)

	a, _ := c.Tokens()
	assert.Empty(t, a)
}

func TestRefresh(t *testing.T) {
	t.Run("not logged in", func(t *testing.T) {
		c := &GRPCClient{client: &fakeRPC{}}
		_, err := c.Refresh(context.Background())
		require.ErrorIs(t, err, ErrNotLoggedIn)
	})

	t.Run("rejected token clears session", func(t *testing.T) {
		f := &fakeRPC{refreshErr: status.Error(codes.PermissionDenied, "invalid refresh token")}
		c := &GRPCClient{client: f, accessToken: "A", refreshToken: "R"}

		_, err := c.Refresh(context.Background())
		require.ErrorIs(t, err, ErrUnauthorized)
		a, r := c.Tokens()
		assert.Empty(t, a)
		assert.Empty(t, r)
	})

	t.Run("unavailable keeps session", func(t *testing.T) {
		f := &fakeRPC{refreshErr: status.Error(codes.Unavailable, "down")}
		c := &GRPCClient{client: f, accessToken: "A", refreshToken: "R"}

		_, err := c.Refresh(context.Background())
		require.ErrorIs(t, err, ErrUnavailable)
		_, r := c.Tokens()
		assert.Equal(t, "R", r)
	})
}

func TestLogout(t *testing.T) {
	c := &GRPCClient{client: &fakeRPC{}}
	require.ErrorIs(t, c.Logout(context.Background()), ErrNotLoggedIn)

	c.SetTokens("A", "R")
	require.NoError(t, c.Logout(context.Background()))
	a, r := c.Tokens()
	assert.Empty(t, a)
	assert.Empty(t, r)
}

func TestProfile(t *testing.T) {
	f := &fakeRPC{profileResp: &rpc.ProfileResponse{User: rpc.User{Email: "alice@example.com"}}}
	c := &GRPCClient{client: f}

	_, err := c.Profile(context.Background())
	require.ErrorIs(t, err, ErrNotLoggedIn)

	c.SetTokens("A", "R")
	u, err := c.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)
}

func TestPing(t *testing.T) {
	c := &GRPCClient{client: &fakeRPC{pingResp: &rpc.PingResponse{Status: "OK"}}}
	require.NoError(t, c.Ping(context.Background()))

	c = &GRPCClient{client: &fakeRPC{pingResp: &rpc.PingResponse{Status: "DOWN"}}}
	require.ErrorIs(t, c.Ping(context.Background()), ErrUnavailable)

	c = &GRPCClient{client: &fakeRPC{pingErr: status.Error(codes.Unavailable, "x")}}
	require.ErrorIs(t, c.Ping(context.Background()), ErrUnavailable)
}

func TestNewAuthKeeperClient(t *testing.T) {
	c, err := NewAuthKeeperClient("passthrough:///127.0.0.1:1")
	require.NoError(t, err)
	require.NoError(t, c.Close())
}
