// Package client talks to the AuthKeeper authority over gRPC.
//
// GRPCClient keeps the current token pair in memory, attaches the access
// token to every call through a unary interceptor, and when the server
// answers "token expired" it refreshes the pair once and retries the call.
// Every new pair is reported through the OnTokens hook so the caller can
// persist it.
//
// # Error Handling
//
// gRPC status codes are mapped to the sentinels ErrUnauthorized,
// ErrUnavailable and ErrRejected; the server's message is kept in the
// wrapped error text. Match them with errors.Is.
package client
