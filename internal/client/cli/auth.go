package cli

import (
	"context"

	"github.com/dmitrijs2005/offsync/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts the user for a username and password and attempts to
// create a new account via the AuthService.
//
// On success it prints "Success!" and returns nil. The password byte slice
// is securely wiped before returning.
func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.authService.Register(ctx, userName, password); err != nil {
		return err
	}

	a.printf("Success!\n")
	return nil
}

// Login prompts for credentials and authenticates against the server. The
// session is persisted, so later commands stay logged in.
//
// A regular user's first login on this device bootstraps the local store:
// with no local data a full resync is run, otherwise a normal sync so that
// records created before logging in are pushed rather than discarded.
// Administrators never sync.
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

	res, err := a.authService.Login(ctx, userName, password)
	if err != nil {
		a.logger.Warn(ctx, "login failed", "username", userName, "error", err)
		return err
	}
	a.logger.Info(ctx, "login successful", "username", userName, "admin", res.Admin)
	a.monitor.SetOnline(ctx, true)

	if res.Admin {
		a.printf("Logged in as administrator, sync is disabled\n")
		return nil
	}
	a.printf("Logged in as %s\n", userName)
	return a.bootstrap(ctx)
}

func (a *App) bootstrap(ctx context.Context) error {
	last, err := a.repos.Checkpoint.LastSync(ctx)
	if err != nil {
		return err
	}
	if !last.IsZero() {
		return nil
	}

	local, err := a.repos.Records.Tables(ctx)
	if err != nil {
		return err
	}
	if len(local) == 0 {
		return a.engine.ForceSyncFromServer(ctx)
	}
	_, err = a.engine.StartSync(ctx, true)
	return err
}

// Logout forgets the persisted session. Local records are kept.
func (a *App) Logout(ctx context.Context) error {
	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	a.printf("Logged out\n")
	return nil
}
