// Package client talks to the offsync record server and bootstraps the local
// database.
//
// GRPCClient implements RemoteAPI over the hand-declared gRPC contract in
// package rpc. It attaches the access token to every call through a unary
// interceptor, applies a per-call deadline and maps gRPC status codes to the
// sentinel errors ErrUnavailable, ErrUnauthorized and ErrRejected so callers
// can use errors.Is without importing gRPC.
//
// InitDatabase opens the SQLite file, applies the embedded migrations and
// returns the repositories the rest of the client is built from.
package client
