// Package services contains application services for the offsync client.
// This file defines the authentication service: login, register, liveness
// probe, and the session persisted in local metadata.
package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/offsync/internal/client/client"
	"github.com/dmitrijs2005/offsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/offsync/internal/client/session"
	"github.com/dmitrijs2005/offsync/internal/dbx"
)

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Login: authenticate against the server and persist the session.
//   - Restore: reload a persisted session without contacting the server.
//   - Logout: forget the session locally.
//   - Register: create a new user on the server.
//   - Ping: check server liveness.
//   - Close: release underlying client resources.
type AuthService interface {
	Login(ctx context.Context, username string, password []byte) (*client.LoginResult, error)
	Restore(ctx context.Context) (bool, error)
	Logout(ctx context.Context) error
	Register(ctx context.Context, username string, password []byte) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type authService struct {
	client  client.Client
	db      *sql.DB
	session *session.Session
}

// NewAuthService constructs an AuthService bound to the given API client, the
// local database and the in-memory session.
func NewAuthService(c client.Client, db *sql.DB, s *session.Session) AuthService {
	return &authService{client: c, db: db, session: s}
}

func (a *authService) getMetadataRepo() metadata.Repository {
	return metadata.NewSQLiteRepository(a.db)
}

// Login authenticates against the server and stores username, access token
// and admin flag so the session survives a restart.
func (a *authService) Login(ctx context.Context, username string, password []byte) (*client.LoginResult, error) {
	res, err := a.client.Login(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}

	if err := a.saveSession(ctx, username, res); err != nil {
		return nil, fmt.Errorf("session saving error: %w", err)
	}

	a.session.Set(username, res.AccessToken, res.Admin)
	return res, nil
}

func (a *authService) saveSession(ctx context.Context, username string, res *client.LoginResult) error {
	admin := []byte("0")
	if res.Admin {
		admin = []byte("1")
	}

	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := repo.Set(ctx, metadata.KeyUsername, []byte(username)); err != nil {
			return err
		}
		if err := repo.Set(ctx, metadata.KeyAccessToken, []byte(res.AccessToken)); err != nil {
			return err
		}
		return repo.Set(ctx, metadata.KeyAdmin, admin)
	})
}

// Restore loads a persisted session into memory and hands its token to the
// client. It reports false when nobody is logged in.
func (a *authService) Restore(ctx context.Context) (bool, error) {
	repo := a.getMetadataRepo()

	username, err := repo.Get(ctx, metadata.KeyUsername)
	if err != nil {
		return false, err
	}
	if len(username) == 0 {
		return false, nil
	}
	token, err := repo.Get(ctx, metadata.KeyAccessToken)
	if err != nil {
		return false, err
	}
	admin, err := repo.Get(ctx, metadata.KeyAdmin)
	if err != nil {
		return false, err
	}

	a.session.Set(string(username), string(token), string(admin) == "1")
	a.client.SetAccessToken(string(token))
	return true, nil
}

// Logout drops the persisted session. Local records and the sync checkpoint
// are kept.
func (a *authService) Logout(ctx context.Context) error {
	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		for _, key := range metadata.SessionKeys {
			if err := repo.Delete(ctx, key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("logout error: %w", err)
	}

	a.session.Clear()
	a.client.SetAccessToken("")
	return nil
}

// Register creates a new account on the server.
func (a *authService) Register(ctx context.Context, username string, password []byte) error {
	return a.client.Register(ctx, username, password)
}

// Ping proxies a liveness check to the underlying client.
func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// Close releases resources held by the underlying client.
func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}
