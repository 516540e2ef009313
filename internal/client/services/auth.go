// Package services contains the application services of the splitsync
// client: authentication with an offline fallback, and the ledger that
// records local edits for the sync engine to push.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/splitsync/internal/client/client"
	"github.com/dmitrijs2005/splitsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/splitsync/internal/cryptox"
)

// Metadata keys of the cached session.
const (
	SessionUsernameKey  = "session_username"
	SessionAccountIDKey = "session_account_id"
	SessionSaltKey      = "session_salt"
	SessionVerifierKey  = "session_verifier"
)

var sessionKeys = []string{SessionUsernameKey, SessionAccountIDKey, SessionSaltKey, SessionVerifierKey}

// Session identifies the signed-in account.
type Session struct {
	AccountID int64
	Username  string
	// Online is false for a session restored from the device cache; the
	// server has not issued a token for it.
	Online bool
}

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Register: create an account on the server.
//   - OnlineLogin: authenticate against the server and cache what offline
//     login needs.
//   - OfflineLogin: verify the password against the cached verifier.
//   - Logout: forget the cached session; replica data stays.
//
// All methods must honor context cancellation/timeouts.
type AuthService interface {
	Register(ctx context.Context, username, email string, password []byte) (int64, error)
	OnlineLogin(ctx context.Context, username string, password []byte) (Session, error)
	OfflineLogin(ctx context.Context, username string, password []byte) (Session, error)
	Logout(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type authService struct {
	client client.Client
	meta   metadata.Repository
}

func NewAuthService(client client.Client, meta metadata.Repository) AuthService {
	return &authService{client: client, meta: meta}
}

func (a *authService) Register(ctx context.Context, username, email string, password []byte) (int64, error) {
	id, err := a.client.Register(ctx, username, email, string(password))
	if err != nil {
		return 0, fmt.Errorf("register error: %w", err)
	}
	return id, nil
}

// OnlineLogin authenticates against the server and replaces the cached
// session with a fresh salt and verifier.
func (a *authService) OnlineLogin(ctx context.Context, username string, password []byte) (Session, error) {
	id, err := a.client.Login(ctx, username, string(password))
	if err != nil {
		return Session{}, fmt.Errorf("login error: %w", err)
	}

	salt, err := cryptox.NewSalt()
	if err != nil {
		return Session{}, err
	}
	verifier := cryptox.MakeVerifier(cryptox.DeriveKey(password, salt))

	values := map[string][]byte{
		SessionUsernameKey:  []byte(username),
		SessionAccountIDKey: []byte(strconv.FormatInt(id, 10)),
		SessionSaltKey:      salt,
		SessionVerifierKey:  verifier,
	}
	for _, k := range sessionKeys {
		if err := a.meta.Set(ctx, k, values[k]); err != nil {
			return Session{}, fmt.Errorf("offline data saving error: %w", err)
		}
	}
	return Session{AccountID: id, Username: username, Online: true}, nil
}

// OfflineLogin restores the last online session of username. It returns
// client.ErrLocalDataNotAvailable when nothing is cached and
// client.ErrUnauthorized when the username or password does not match.
func (a *authService) OfflineLogin(ctx context.Context, username string, password []byte) (Session, error) {
	values := make(map[string][]byte, len(sessionKeys))
	for _, k := range sessionKeys {
		v, err := a.meta.Get(ctx, k)
		if err != nil {
			return Session{}, err
		}
		if len(v) == 0 {
			return Session{}, client.ErrLocalDataNotAvailable
		}
		values[k] = v
	}

	if string(values[SessionUsernameKey]) != username {
		return Session{}, client.ErrUnauthorized
	}
	if !cryptox.Verify(password, values[SessionSaltKey], values[SessionVerifierKey]) {
		return Session{}, client.ErrUnauthorized
	}

	id, err := strconv.ParseInt(string(values[SessionAccountIDKey]), 10, 64)
	if err != nil {
		return Session{}, errors.Join(client.ErrLocalDataNotAvailable, err)
	}
	return Session{AccountID: id, Username: username}, nil
}

func (a *authService) Logout(ctx context.Context) error {
	for _, k := range sessionKeys {
		if err := a.meta.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// Ping proxies a liveness check to the underlying client.
func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// Close releases resources held by the underlying client.
func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}
