package cli

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/client/client"
	"github.com/dmitrijs2005/authkeeper/internal/client/config"
	"github.com/dmitrijs2005/authkeeper/internal/client/session"
	"github.com/dmitrijs2005/authkeeper/internal/rpc"
)

// Client is the part of client.GRPCClient the commands use.
type Client interface {
	Register(ctx context.Context, email, firstName, lastName string, password []byte) (*rpc.User, error)
	Login(ctx context.Context, email string, password []byte) (*rpc.User, error)
	Refresh(ctx context.Context) (string, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (*rpc.User, error)
	Ping(ctx context.Context) error
	SetTokens(accessToken, refreshToken string)
	Close() error
}

type SessionStore interface {
	Load() (session.Session, error)
	Save(session.Session) error
	Clear() error
}

type App struct {
	config  *config.Config
	client  Client
	store   SessionStore
	session session.Session
	reader  *bufio.Reader
	out     io.Writer
}

// NewApp restores the saved session, if any, and connects to the server.
func NewApp(c *config.Config) (*App, error) {
	store, err := session.NewStore(c.SessionDir)
	if err != nil {
		return nil, err
	}

	apiClient, err := client.NewAuthKeeperClient(c.ServerEndpointAddr)
	if err != nil {
		return nil, err
	}

	a := newApp(c, apiClient, store, os.Stdin, os.Stdout)
	apiClient.OnTokens = a.persist
	if err := a.restore(); err != nil {
		_ = apiClient.Close()
		return nil, err
	}
	return a, nil
}

func newApp(c *config.Config, cl Client, store SessionStore, in io.Reader, out io.Writer) *App {
	return &App{config: c, client: cl, store: store, reader: bufio.NewReader(in), out: out}
}

func (a *App) restore() error {
	sess, err := a.store.Load()
	if err != nil {
		return err
	}
	a.session = sess
	a.client.SetTokens(sess.AccessToken, sess.RefreshToken)
	return nil
}

// persist saves every pair the client receives. An empty pair means the
// session ended.
func (a *App) persist(accessToken, refreshToken string) {
	if accessToken == "" && refreshToken == "" {
		a.session = session.Session{}
		if err := a.store.Clear(); err != nil {
			a.printf("warning: %v\n", err)
		}
		return
	}

	a.session.AccessToken, a.session.RefreshToken = accessToken, refreshToken
	if err := a.store.Save(a.session); err != nil {
		a.printf("warning: could not save session: %v\n", err)
	}
}

func (a *App) isLoggedIn() bool {
	return a.session.LoggedIn()
}

// Run executes the command in args, or the interactive prompt when args is
// empty.
func (a *App) Run(ctx context.Context, args []string) error {
	defer a.client.Close()

	if len(args) == 0 {
		a.Root(ctx)
		return nil
	}
	return a.dispatch(ctx, args[0])
}
