// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package types

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shiraai/pkg/utils"
)

var (
	ErrMissingAuthorization = errors.New("missing or invalid authorization header")
	ErrInvalidToken         = errors.New("invalid or expired token")
)

// Claims are the access-token claims issued by the auth provider. The user id
// is carried in the standard subject claim.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Principle is the verified caller of a request.
type Principle struct {
	UserID string
	Email  string
	Token  string
}

type TokenVerifier interface {
	Verify(token string) (*Principle, error)
}

type hmacVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) TokenVerifier {
	return &hmacVerifier{secret: []byte(secret)}
}

func (v *hmacVerifier) Verify(token string) (*Principle, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if utils.IsEmpty(claims.Subject) {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return &Principle{UserID: claims.Subject, Email: claims.Email, Token: token}, nil
}

// SignToken issues an HS256 token for userID. Used by tooling and tests; the
// production tokens come from the auth provider.
func SignToken(secret, userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseBearer extracts the token from an Authorization header value.
//
// Header format: Bearer {token}
func ParseBearer(header string) (string, error) {
	if !strings.HasPrefix(header, utils.BEARER_PREFIX) {
		return "", ErrMissingAuthorization
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, utils.BEARER_PREFIX))
	if token == "" {
		return "", ErrMissingAuthorization
	}
	return token, nil
}

type principleKey struct{}

func WithAuthPrinciple(ctx context.Context, p *Principle) context.Context {
	return context.WithValue(ctx, principleKey{}, p)
}

func GetAuthPrinciple(ctx context.Context) (*Principle, bool) {
	p, ok := ctx.Value(principleKey{}).(*Principle)
	return p, ok && p != nil
}
