package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/venturemart/wallet/internal/apperrors"
	"github.com/venturemart/wallet/internal/models"
	"github.com/venturemart/wallet/internal/repository"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

type Config struct {
	// Secret key to sign access tokens
	// Required to be set
	SecretKey string

	// Hasher to use during registration or login
	// If not set bcrypt is used
	Hasher PasswordHasher

	// Access token lifetime
	// If not set a default is used
	AccessTTL time.Duration
}

type AuthService struct {
	token  tokenManager
	hasher PasswordHasher

	// Repository to access long term data
	userRepo repository.UserRepo
}

func NewService(cfg Config, userRepo repository.UserRepo) (*AuthService, error) {
	if userRepo == nil {
		return nil, errors.New("user repo must not be nil")
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = DefaultHasher
	}

	token, err := newTokenManager(cfg.SecretKey, cfg.AccessTTL)
	if err != nil {
		return nil, err
	}

	return &AuthService{
		token:    token,
		hasher:   hasher,
		userRepo: userRepo,
	}, nil
}

// Register creates the user and returns a fresh access token.
// The user's wallet is not created here: the ledger creates it lazily on
// the first credit or debit.
func (s *AuthService) Register(ctx context.Context, username string, password string) (models.User, string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, "", fmt.Errorf("can't use this as password, Err: %w", err)
	}

	user, err := s.userRepo.CreateUser(ctx, username, hash)
	if err != nil {
		return models.User{}, "", err
	}

	token, err := s.token.Issue(user)
	if err != nil {
		return models.User{}, "", fmt.Errorf("token could not be generated. Err: %w", err)
	}

	return user, token, nil
}

func (s *AuthService) Login(ctx context.Context, username string, password string) (models.User, string, error) {
	user, err := s.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		return models.User{}, "", apperrors.ErrUserNotFound
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.User{}, "", apperrors.ErrUserNotFound
	}

	token, err := s.token.Issue(user)
	if err != nil {
		return models.User{}, "", fmt.Errorf("token could not be generated. Err: %w", err)
	}

	return user, token, nil
}

// Auth authenticates the request by its bearer token
func (s *AuthService) Auth(ctx context.Context, r *http.Request) (models.User, error) {
	header := r.Header.Get("Authorization")
	tokenString, found := strings.CutPrefix(header, "Bearer ")
	if !found || tokenString == "" {
		return models.User{}, apperrors.ErrTokenInvalid
	}

	userID, err := s.token.Parse(tokenString)
	if err != nil {
		return models.User{}, err
	}

	return s.userRepo.GetUserByID(ctx, userID)
}
