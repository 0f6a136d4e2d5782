// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login and issuing access tokens.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/server/auth"
	"github.com/dmitrijs2005/offsync/internal/server/config"
	"github.com/dmitrijs2005/offsync/internal/server/models"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxUsernameLen = 64
	minPasswordLen = 4
	// bcrypt ignores input past 72 bytes
	maxPasswordLen = 72
)

// LoginResult is what a successful login grants.
type LoginResult struct {
	AccessToken string
	Admin       bool
}

// UserService provides authentication-related operations:
// - Register: create users with bcrypt password hashes
// - Login: verify credentials and mint an access token
type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	config                      *config.Config
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	bcryptCost                  int
	// compared against when the user does not exist
	dummyHash []byte
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	s := &UserService{
		db:                          db,
		repomanager:                 m,
		config:                      cfg,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		bcryptCost:                  bcrypt.DefaultCost,
	}
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("offsync-dummy-password"), s.bcryptCost)
	return s
}

func validateCredentials(username string, password []byte) error {
	switch {
	case username == "" || len(username) > maxUsernameLen:
		return fmt.Errorf("%w: username must be 1-%d characters", common.ErrorInvalidInput, maxUsernameLen)
	case len(password) < minPasswordLen || len(password) > maxPasswordLen:
		return fmt.Errorf("%w: password must be %d-%d bytes", common.ErrorInvalidInput, minPasswordLen, maxPasswordLen)
	}
	return nil
}

// Register creates a user. Usernames listed in the config's AdminUsers get
// the admin flag. A taken username yields common.ErrorAlreadyExists.
func (s *UserService) Register(ctx context.Context, username string, password []byte) (*models.User, error) {
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword(password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		UserName:     username,
		PasswordHash: hash,
		Admin:        s.config.IsAdmin(username),
	}
	u, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return u, nil
}

// Login verifies the password and returns a signed access token carrying the
// user id and admin flag. Unknown users and wrong passwords both yield
// common.ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, username string, password []byte) (*LoginResult, error) {
	user, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, password)
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	if bcrypt.CompareHashAndPassword(user.PasswordHash, password) != nil {
		return nil, common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(auth.Identity{UserID: user.ID, Admin: user.Admin}, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return &LoginResult{AccessToken: token, Admin: user.Admin}, nil
}
