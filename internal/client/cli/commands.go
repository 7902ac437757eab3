package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/client/client"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/rpc"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var errUnknownCommand = errors.New("unknown command")

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) dispatch(ctx context.Context, cmd string) error {
	ctx, cancel := context.WithTimeout(ctx, a.config.RequestTimeout)
	defer cancel()

	var err error
	switch cmd {
	case "register":
		err = a.Register(ctx)
	case "login":
		err = a.Login(ctx)
	case "refresh":
		err = a.Refresh(ctx)
	case "logout":
		err = a.Logout(ctx)
	case "profile":
		err = a.Profile(ctx)
	case "ping":
		err = a.Ping(ctx)
	case "help":
		a.help()
	default:
		err = fmt.Errorf("%w: %s", errUnknownCommand, cmd)
	}
	return err
}

func (a *App) help() {
	if a.isLoggedIn() {
		a.printf("Available commands: profile, refresh, logout, ping, exit\n")
	} else {
		a.printf("Available commands: register, login, ping, exit\n")
	}
}

func (a *App) printUser(u *rpc.User) {
	a.printf("id:       %s\n", u.ID)
	a.printf("email:    %s\n", u.Email)
	a.printf("name:     %s %s\n", u.FirstName, u.LastName)
	a.printf("active:   %t\n", u.IsActive)
	a.printf("created:  %s\n", u.CreatedAt.Format("2006-01-02 15:04:05"))
}

// Register prompts for the account details and creates the account. The
// password byte slice is wiped before returning.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	firstName, err := getSimpleText(a.reader, "Enter first name", a.out)
	if err != nil {
		return err
	}
	lastName, err := getSimpleText(a.reader, "Enter last name", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	a.session.Email = email
	u, err := a.client.Register(ctx, email, firstName, lastName, password)
	if err != nil {
		a.session.Email = ""
		return err
	}

	a.printf("Registered and logged in as %s\n", u.Email)
	return nil
}

// Login prompts for credentials and starts a session.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	prev := a.session.Email
	a.session.Email = email
	u, err := a.client.Login(ctx, email, password)
	if err != nil {
		a.session.Email = prev
		return err
	}

	a.printf("Logged in as %s\n", u.Email)
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	if _, err := a.client.Refresh(ctx); err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			a.printf("Session is no longer valid, please log in again\n")
		}
		return err
	}
	a.printf("Tokens refreshed\n")
	return nil
}

// Logout ends the session. The local session is dropped even when the
// server no longer accepts the access token.
func (a *App) Logout(ctx context.Context) error {
	err := a.client.Logout(ctx)
	if err != nil && !errors.Is(err, client.ErrUnauthorized) {
		return err
	}
	if err != nil {
		a.client.SetTokens("", "")
		a.persist("", "")
	}
	a.printf("Logged out\n")
	return nil
}

func (a *App) Profile(ctx context.Context) error {
	u, err := a.client.Profile(ctx)
	if err != nil {
		return err
	}
	a.printUser(u)
	return nil
}

func (a *App) Ping(ctx context.Context) error {
	if err := a.client.Ping(ctx); err != nil {
		return err
	}
	a.printf("Server is up\n")
	return nil
}
