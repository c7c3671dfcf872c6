package remote

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	pkgerrors "easymemo/pkg/errors"
)

// Identity is the scope requests are issued under: an authenticated account or
// a stable anonymous guest.
type Identity struct {
	UserID string
	Email  string
	Guest  bool
}

// NewGuestIdentity mints a fresh anonymous identity. The caller persists it so
// the same guest scope survives restarts.
func NewGuestIdentity() Identity {
	return Identity{
		UserID: uuid.New().String(),
		Guest:  true,
	}
}

// IdentityFromToken derives the account identity from a bearer token. The
// signature is NOT verified here - the server does that on every request; the
// client only needs the claims for display and log scoping.
func IdentityFromToken(token string) (Identity, error) {
	parser := jwt.NewParser()

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return Identity{}, pkgerrors.NewValidationError("malformed bearer token").WithCause(err)
	}

	id := Identity{}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		id.UserID = sub
	}
	if v, ok := claims["userId"].(string); ok && id.UserID == "" {
		id.UserID = v
	}
	if v, ok := claims["email"].(string); ok {
		id.Email = v
	}

	if id.UserID == "" {
		return Identity{}, pkgerrors.NewValidationError("bearer token carries no user identity")
	}
	return id, nil
}
