package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/splitsync/internal/client/client"
	"github.com/dmitrijs2005/splitsync/internal/client/services"
	"github.com/dmitrijs2005/splitsync/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for a username, an email and a password and creates an
// account on the server. The password is wiped before returning.
func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	id, err := a.authService.Register(ctx, userName, email, password)
	if err != nil {
		return err
	}

	printlnFn(fmt.Sprintf("Registered account %d, you can login now", id))
	return nil
}

// Login prompts for credentials and tries to authenticate.
//
// The online login is tried first. If the server is unavailable it falls
// back to the session cached by the last online login. The resulting mode
// is ModeOnline, ModeOffline or ModeDisabled when neither worked.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	sess, err := a.authService.OnlineLogin(ctx, userName, password)
	mode := ModeOnline
	if errors.Is(err, client.ErrUnavailable) {
		a.log.Warn(ctx, "server unavailable, trying offline login")
		sess, err = a.authService.OfflineLogin(ctx, userName, password)
		mode = ModeOffline
	}
	if err != nil {
		if mode == ModeOffline {
			a.setMode(ctx, ModeDisabled)
		}
		return fmt.Errorf("login failed: %w", err)
	}

	profile, err := a.ledger.EnsureProfile(ctx, sess)
	if err != nil {
		return err
	}

	a.setSession(&sess, profile)
	a.setMode(ctx, mode)
	a.log.Info(ctx, "logged in", "username", sess.Username, "mode", mode)
	return nil
}

// Logout forgets the cached session. Local data and pending edits stay and
// are pushed after the next login.
func (a *App) Logout(ctx context.Context) error {
	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	a.setSession(nil, 0)
	return nil
}

func (a *App) requireSession() (services.Session, int64, error) {
	sess, profile, ok := a.currentSession()
	if !ok {
		return services.Session{}, 0, client.ErrUnauthorized
	}
	return sess, profile, nil
}
