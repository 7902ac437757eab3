package cli

import (
	"context"
	"errors"
	"io"
	"strings"
)

func (a *App) prompt() string {
	if a.session.Email != "" && a.isLoggedIn() {
		return "authkeeper (" + a.session.Email + ")> "
	}
	return "authkeeper> "
}

// Root runs the interactive prompt until EOF or "exit". Command errors are
// printed and the loop continues.
func (a *App) Root(ctx context.Context) {
	a.printf("Welcome to AuthKeeper CLI (type 'help' for commands)\n")

	for {
		a.printf("%s", a.prompt())
		line, err := a.reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		switch cmd := parts[0]; cmd {
		case "exit", "quit":
			a.printf("Bye!\n")
			return
		default:
			if err := a.dispatch(ctx, cmd); err != nil {
				a.printf("error: %v\n", err)
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}
