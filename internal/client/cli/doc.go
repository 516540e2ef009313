// Package cli provides the interactive splitsync command-line client.
//
// It wires configuration, the local replica, the sync engine and an
// interactive REPL that keeps working while the server is unreachable.
// Typical flow: prompt for credentials, start a background connectivity
// watcher, and execute user commands against the local replica.
//
// Key features:
//   - Login / Logout (online with offline fallback)
//   - Groups, members, payments split equally, archive / restore
//   - Status of pending and failed rows, explicit sync
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher, and runREPL for details.
package cli
