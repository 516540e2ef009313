// Package client contains the client-side building blocks for talking to the
// splitsync server and opening the local replica.
//
// # Overview
//
//  1. Client is the transport-agnostic API contract: Register, Login, Ping
//     and the three entity calls used by the sync engine (Create, Update,
//     ListSince). Entity payloads are JSON objects whose foreign keys hold
//     server ids.
//  2. GRPCClient implements Client over the SyncService gRPC contract. It
//     injects the access token via a unary interceptor, retries idempotent
//     calls while the server is unavailable, and maps gRPC status codes to
//     sentinel errors.
//  3. InitDatabase opens the SQLite replica, applies the embedded goose
//     migrations and wires the repositories.
//
// # Error Handling
//
// Callers match conditions with errors.Is: ErrUnavailable, ErrUnauthorized,
// ErrAlreadyExists, ErrNotFound, ErrLocalDataNotAvailable. Any other
// rejection is a *ServerError carrying the gRPC code, matched with errors.As.
//
// # Concurrency
//
// GRPCClient is safe for concurrent use; the sync engine pushes from several
// goroutines at once.
package client
