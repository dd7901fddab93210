// Package api is a thin facade over the read-only Discord endpoints the CLI
// consumes. Every call obtains a valid bearer token from the lifecycle
// manager first, so expired sessions refresh transparently.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/guildexport/guildexport/internal/config"
	"github.com/guildexport/guildexport/internal/util"
)

// TokenSource supplies an access token guaranteed valid at time of return.
// *auth.Manager satisfies it.
type TokenSource interface {
	GetValidAccessToken(ctx context.Context) (string, error)
}

// User is the identity returned by users/@me.
type User struct {
	ID         string
	Username   string
	GlobalName string
	Avatar     string
}

// Guild is one entry of the users/@me/guilds listing.
type Guild struct {
	ID    string
	Name  string
	Owner bool
}

// APIError reports a non-success response from the provider API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api request failed with status %d: %s", e.StatusCode, e.Body)
}

// Client calls the provider API with bearer authentication.
type Client struct {
	cfg        *config.Config
	tokens     TokenSource
	httpClient *http.Client
}

// NewClient creates the API facade.
func NewClient(cfg *config.Config, tokens TokenSource) *Client {
	return &Client{
		cfg:        cfg,
		tokens:     tokens,
		httpClient: util.SetProxy(cfg.ProxyURL, &http.Client{Timeout: 30 * time.Second}),
	}
}

// CurrentUser fetches the authenticated user's identity.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	body, err := c.get(ctx, c.cfg.MeURL())
	if err != nil {
		return nil, err
	}
	me := gjson.ParseBytes(body)
	return &User{
		ID:         me.Get("id").String(),
		Username:   me.Get("username").String(),
		GlobalName: me.Get("global_name").String(),
		Avatar:     me.Get("avatar").String(),
	}, nil
}

// Guilds fetches the guilds the authenticated user belongs to.
func (c *Client) Guilds(ctx context.Context) ([]Guild, error) {
	body, err := c.get(ctx, c.cfg.GuildsURL())
	if err != nil {
		return nil, err
	}

	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("unexpected guild list payload: %s", truncate(string(body), 200))
	}

	var guilds []Guild
	parsed.ForEach(func(_, value gjson.Result) bool {
		guilds = append(guilds, Guild{
			ID:    value.Get("id").String(),
			Name:  value.Get("name").String(),
			Owner: value.Get("owner").Bool(),
		})
		return true
	})
	return guilds, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	token, err := c.tokens.GetValidAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), 500)}
	}
	return body, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
