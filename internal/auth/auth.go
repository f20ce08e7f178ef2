package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"imagevault/pkg/logger"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is the authenticated principal. Admin is set only for the bare
// system secret.
type Identity struct {
	OwnerID string
	Admin   bool
}

// CanModify reports whether the identity may change an image owned by owner.
func (id Identity) CanModify(owner string) bool {
	return id.Admin || id.OwnerID == owner
}

func (id Identity) String() string {
	if id.Admin {
		return "admin"
	}
	return id.OwnerID
}

type Authenticator struct {
	creds *CredentialCache
}

func NewAuthenticator(creds *CredentialCache) *Authenticator {
	return &Authenticator{creds: creds}
}

// TokenFromRequest reads "Authorization: Bearer <token>", then X-API-Key.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if t := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); t != "" {
			return t
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// Authenticate accepts "<owner>:<secret>" for an owner identity and the bare
// secret for admin.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		logger.LogWarn("Authentication failed: missing token")
		return Identity{}, ErrMissingToken
	}

	secret, err := a.creds.Secret(ctx)
	if err != nil {
		logger.LogError("Authentication failed: %v", err)
		return Identity{}, err
	}

	if owner, given, ok := strings.Cut(token, ":"); ok {
		if !equal(given, secret) || owner == "" {
			logger.LogWarn("Authentication failed: invalid secret for user %s", owner)
			return Identity{}, ErrInvalidToken
		}
		return Identity{OwnerID: owner}, nil
	}

	if !equal(token, secret) {
		logger.LogWarn("Authentication failed: invalid admin token")
		return Identity{}, ErrInvalidToken
	}
	return Identity{Admin: true}, nil
}

func (a *Authenticator) AuthenticateRequest(r *http.Request) (Identity, error) {
	return a.Authenticate(r.Context(), TokenFromRequest(r))
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
