// Package credential defines the persisted token bundle and its on-disk store.
// A single bundle is tracked at a fixed per-user path; it is written whole or
// not at all, and a load never fails harder than "absent".
package credential

import (
	"time"
)

// ExpirySkew is subtracted from the token's computed expiry so a token is
// never presented when it could lapse provider-side mid-request.
const ExpirySkew = 60 * time.Second

// Identity is the informational user snapshot captured once at login.
// It is never re-verified against the provider.
type Identity struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Avatar     string `json:"avatar"`
}

// Bundle is the persisted credential set for one logged-in session.
type Bundle struct {
	// Type tags the record format; always "discord" when written by this tool.
	Type string `json:"type"`

	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`

	// ExpiresIn is the access token lifetime in seconds from issuance.
	ExpiresIn int64 `json:"expires_in"`
	// ObtainedAt is the unix timestamp of issuance on the client clock.
	ObtainedAt int64 `json:"obtained_at"`

	// ClientID and RedirectURI are kept alongside the tokens because both are
	// needed to refresh without re-reading the environment.
	ClientID    string `json:"client_id"`
	RedirectURI string `json:"redirect_uri"`

	User Identity `json:"discord_user"`
}

// ExpiresAt returns the expiry horizon without the skew margin applied.
func (b *Bundle) ExpiresAt() time.Time {
	return time.Unix(b.ObtainedAt+b.ExpiresIn, 0)
}

// ExpiredAt reports whether the access token must be refreshed before use at
// the given instant, applying the skew margin.
func (b *Bundle) ExpiredAt(now time.Time) bool {
	return !now.Before(b.ExpiresAt().Add(-ExpirySkew))
}

// Usable reports whether the record carries the minimum fields for a session.
func (b *Bundle) Usable() bool {
	return b != nil && b.AccessToken != ""
}
