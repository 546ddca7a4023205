package pdsclient

// Credentials pairs an identifier (handle or DID) with an opaque secret
// (password or application password). Neither field is ever logged or
// emitted in diagnostic formatting.
type Credentials struct {
	Identifier string
	Secret     string
}

// String redacts the secret so Credentials is safe to pass to loggers.
func (c Credentials) String() string {
	return "Credentials{Identifier: " + c.Identifier + ", Secret: ***REDACTED***}"
}

// AccessToken is an opaque, byte-identical wrapper around server-issued
// bearer material. It is never parsed or inspected by the core.
type AccessToken struct {
	value string
}

// NewAccessToken wraps raw token material.
func NewAccessToken(raw string) AccessToken { return AccessToken{value: raw} }

// Export returns the raw token string for persistence by the host application.
func (t AccessToken) Export() string { return t.value }

// IsZero reports whether no token has been set.
func (t AccessToken) IsZero() bool { return t.value == "" }

// String redacts the token for diagnostic formatting.
func (t AccessToken) String() string {
	if t.value == "" {
		return "AccessToken(empty)"
	}
	return "AccessToken(***REDACTED***)"
}

// RefreshToken is an opaque, byte-identical wrapper around server-issued
// refresh material. It is never parsed or inspected by the core.
type RefreshToken struct {
	value string
}

// NewRefreshToken wraps raw token material.
func NewRefreshToken(raw string) RefreshToken { return RefreshToken{value: raw} }

// Export returns the raw token string for persistence by the host application.
func (t RefreshToken) Export() string { return t.value }

// IsZero reports whether no token has been set.
func (t RefreshToken) IsZero() bool { return t.value == "" }

// String redacts the token for diagnostic formatting.
func (t RefreshToken) String() string {
	if t.value == "" {
		return "RefreshToken(empty)"
	}
	return "RefreshToken(***REDACTED***)"
}

// TokenPair bundles the access/refresh pair so a session can replace both atomically.
type TokenPair struct {
	Access  AccessToken
	Refresh RefreshToken
}
