// Package tokencodec holds implementation details of the two backends'
// opaque token shapes. The core (pkg/pdsclient) never imports this package
// directly from its public surface — only the concrete backends do —
// keeping token material unparsed by the core itself.
package tokencodec

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Claims holds the subset of a bearer JWT's claims useful for diagnostics
// (e.g. Session.IsExpired). Never used to make authorization decisions —
// the server is always the source of truth for token validity.
type Claims struct {
	Subject   string
	Issuer    string
	ExpiresAt int64
}

// PeekClaims parses a JWT's claims without verifying its signature. This is
// diagnostic only: it lets a caller ask "does this look expired" before
// calling Refresh, never a substitute for the server's own validation.
func PeekClaims(_ context.Context, tokenString string) (Claims, error) {
	token, err := jwt.Parse([]byte(tokenString), jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return Claims{}, fmt.Errorf("parsing token claims: %w", err)
	}
	return Claims{
		Subject:   token.Subject(),
		Issuer:    token.Issuer(),
		ExpiresAt: token.Expiration().Unix(),
	}, nil
}

// fileToken is the decoded shape of the local backend's bearer material:
// the DID it authenticates and the account password hash it was minted
// against, so a later re-read of the account detects password changes.
type fileToken struct {
	Did          string `json:"did"`
	PasswordHash string `json:"password_hash"`
}

// EncodeFileToken builds the local backend's opaque token string. Both
// access and refresh tokens share this shape.
func EncodeFileToken(did, passwordHash string) string {
	raw, _ := json.Marshal(fileToken{Did: did, PasswordHash: passwordHash})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeFileToken reverses EncodeFileToken. Returns an error if token is
// not in the expected shape — callers treat that as an invalid token.
func DecodeFileToken(token string) (did, passwordHash string, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", "", fmt.Errorf("malformed token encoding: %w", err)
	}
	var ft fileToken
	if err := json.Unmarshal(raw, &ft); err != nil {
		return "", "", fmt.Errorf("malformed token payload: %w", err)
	}
	if ft.Did == "" || ft.PasswordHash == "" {
		return "", "", fmt.Errorf("token missing did or password_hash")
	}
	return ft.Did, ft.PasswordHash, nil
}
