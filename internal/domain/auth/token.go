package auth

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the access token claims the storefront relies on.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 access tokens and attaches the stored role.
type Authenticator struct {
	secret   []byte
	audience string
	roles    Repository
}

// NewAuthenticator creates an Authenticator. An empty audience disables the
// audience check.
func NewAuthenticator(secret []byte, audience string, roles Repository) *Authenticator {
	return &Authenticator{secret: secret, audience: audience, roles: roles}
}

// Authenticate parses a bearer token and resolves its principal.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (Principal, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return Principal{}, ErrUnauthorized
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}

	var claims Claims
	tkn, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return a.secret, nil
	}, opts...)
	if err != nil || !tkn.Valid {
		return Principal{}, errors.Wrap(ErrUnauthorized, "parse token")
	}
	if claims.Subject == "" {
		return Principal{}, errors.Wrap(ErrUnauthorized, "token has no subject")
	}

	role, err := a.roles.RoleOf(ctx, claims.Subject)
	if err != nil {
		return Principal{}, errors.Wrap(err, "get role")
	}
	return Principal{UserID: claims.Subject, Email: claims.Email, Role: role}, nil
}

// Sign issues an HS256 token for claims. It is used by tooling and tests;
// production tokens come from the identity service.
func Sign(secret []byte, claims Claims) (string, error) {
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return s, nil
}
