package auth

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/guildexport/guildexport/internal/browser"
	"github.com/guildexport/guildexport/internal/credential"
)

// Manager owns the stored session lifecycle. It is the single entry point
// consumers use to obtain an access token that is valid at time of return,
// refreshing through the exchange client when the stored one has expired.
type Manager struct {
	store *credential.Store
	svc   *DiscordAuth
	group singleflight.Group

	// openBrowser is swapped out in tests to capture the authorization URL.
	openBrowser func(url string) error
	// now is swapped out in tests to control expiry arithmetic.
	now func() time.Time
}

// NewManager constructs a lifecycle manager over the given store and auth
// service.
func NewManager(store *credential.Store, svc *DiscordAuth) *Manager {
	return &Manager{
		store:       store,
		svc:         svc,
		openBrowser: browser.OpenURL,
		now:         time.Now,
	}
}

// GetValidAccessToken loads the stored bundle, refreshes it if the skew check
// says it has expired, and returns an access token usable right now.
// Returns ErrNotLoggedIn when no session exists, and *RefreshError when the
// provider rejected the refresh; both require a fresh login.
func (m *Manager) GetValidAccessToken(ctx context.Context) (string, error) {
	bundle, err := m.store.Load()
	if err != nil {
		return "", err
	}
	if bundle == nil {
		return "", ErrNotLoggedIn
	}

	if !bundle.ExpiredAt(m.now()) {
		return bundle.AccessToken, nil
	}

	// Concurrent callers share a single refresh round-trip.
	refreshed, err, _ := m.group.Do("refresh", func() (interface{}, error) {
		return m.refresh(ctx, bundle)
	})
	if err != nil {
		return "", err
	}
	return refreshed.(*credential.Bundle).AccessToken, nil
}

// refresh rotates the stored bundle through the token endpoint and persists
// the result. The previous refresh token is retained when the provider omits
// a new one. On failure the stale bundle stays on disk but is never handed
// out as valid.
func (m *Manager) refresh(ctx context.Context, bundle *credential.Bundle) (*credential.Bundle, error) {
	if bundle.RefreshToken == "" {
		return nil, fmt.Errorf("access token expired and no refresh token is stored: %w", ErrNotLoggedIn)
	}

	log.Debug("access token expired, refreshing")
	tokenResp, err := m.svc.Refresh(ctx, bundle.RefreshToken)
	if err != nil {
		return nil, err
	}

	bundle.AccessToken = tokenResp.AccessToken
	if tokenResp.RefreshToken != "" {
		bundle.RefreshToken = tokenResp.RefreshToken
	}
	if tokenResp.TokenType != "" {
		bundle.TokenType = tokenResp.TokenType
	}
	if tokenResp.Scope != "" {
		bundle.Scope = tokenResp.Scope
	}
	bundle.ExpiresIn = tokenResp.ExpiresIn
	bundle.ObtainedAt = m.now().Unix()

	if err = m.store.Save(bundle); err != nil {
		return nil, err
	}
	return bundle, nil
}

// Identity returns the stored login-time user snapshot.
func (m *Manager) Identity() (*credential.Identity, error) {
	bundle, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	if bundle == nil {
		return nil, ErrNotLoggedIn
	}
	user := bundle.User
	return &user, nil
}

// LoggedIn reports whether a stored session exists, expired or not.
func (m *Manager) LoggedIn() bool {
	bundle, err := m.store.Load()
	return err == nil && bundle != nil
}

// Logout removes the persisted bundle. Logging out twice is not an error.
func (m *Manager) Logout() error {
	return m.store.Clear()
}

// CredentialPath exposes the on-disk location for user-facing messages.
func (m *Manager) CredentialPath() string {
	return m.store.Path()
}
