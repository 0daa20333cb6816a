package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// UserStore resolves a user id to a platform user record.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (models.User, error)
}

// Resolver maps an opaque bearer credential to a user identity. Verification
// happens exactly once per request or connection; there is no mid-connection
// re-authentication.
type Resolver struct {
	secret []byte
	users  UserStore
}

// NewResolver constructs a Resolver with the HMAC signing secret.
func NewResolver(secret string, users UserStore) *Resolver {
	return &Resolver{secret: []byte(secret), users: users}
}

// Resolve verifies the JWT and confirms the subject still exists. A missing,
// malformed or expired token, or an unresolvable user id, all surface as
// ErrInvalidToken so the caller rejects uniformly.
func (r *Resolver) Resolve(ctx context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, ErrInvalidToken
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil || !parsed.Valid {
		return models.User{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return models.User{}, ErrInvalidToken
	}
	userID, _ := claims["userId"].(string)
	if userID == "" {
		return models.User{}, ErrInvalidToken
	}

	user, err := r.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return models.User{}, ErrInvalidToken
		}
		return models.User{}, err
	}
	return user, nil
}

// BearerToken extracts the credential from the Authorization header or,
// failing that, the token query parameter (websocket clients cannot always
// set headers).
func BearerToken(req *http.Request) string {
	header := req.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return req.URL.Query().Get("token")
}
