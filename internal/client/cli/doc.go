// Package cli is the AuthKeeper command-line client.
//
// Commands are given as the first positional argument:
//
//	register   create an account and start a session
//	login      start a session
//	refresh    rotate the session's token pair
//	logout     end the session on the server and forget it locally
//	profile    show the logged-in user
//	ping       check the server is up
//
// Without a command an interactive prompt accepts the same commands. The
// token pair is kept in session.json under the configured session directory
// so later invocations reuse it.
package cli
