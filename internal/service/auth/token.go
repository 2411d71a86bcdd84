package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/venturemart/wallet/internal/apperrors"
	"github.com/venturemart/wallet/internal/models"
)

const (
	defaultAccessTokenTTL = 15 * time.Minute
	signingMethod         = "HS256"
)

type AccessTokenClaims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID `json:"uid"`
}

type tokenManager struct {
	key       string
	alg       jwt.SigningMethod
	accessTTL time.Duration
}

func newTokenManager(secretKey string, accessTTL time.Duration) (tokenManager, error) {
	if secretKey == "" {
		return tokenManager{}, errors.New("secret key must not be empty")
	}

	if accessTTL == 0 {
		accessTTL = defaultAccessTokenTTL
	}

	return tokenManager{
		key:       secretKey,
		alg:       jwt.GetSigningMethod(signingMethod),
		accessTTL: accessTTL,
	}, nil
}

func (m tokenManager) Issue(user models.User) (string, error) {
	now := time.Now().Truncate(time.Second)

	token := jwt.NewWithClaims(
		m.alg,
		AccessTokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
			},
			UserID: user.ID,
		},
	)

	signed, err := token.SignedString([]byte(m.key))
	if err != nil {
		return "", fmt.Errorf("can't sign token. Err: %w", err)
	}

	return signed, nil
}

// Parse validates the token signature and expiration and returns the user id
func (m tokenManager) Parse(tokenString string) (uuid.UUID, error) {
	var claims AccessTokenClaims

	_, err := jwt.ParseWithClaims(
		tokenString,
		&claims,
		func(t *jwt.Token) (any, error) { return []byte(m.key), nil },
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return uuid.Nil, apperrors.ErrTokenInvalid
	}

	return claims.UserID, nil
}
