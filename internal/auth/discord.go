package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/guildexport/guildexport/internal/config"
	"github.com/guildexport/guildexport/internal/credential"
	"github.com/guildexport/guildexport/internal/util"
)

// requestTimeout bounds every single round-trip to the provider. Neither the
// exchange nor the refresh is retried: authorization codes and refresh tokens
// are frequently single-use, and a blind retry can mask a real revocation.
const requestTimeout = 30 * time.Second

// TokenResponse mirrors the JSON body returned by the token endpoint for both
// grant types.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
}

// DiscordAuth performs the network half of the OAuth flow: building the
// authorization URL, exchanging codes for tokens and refreshing them.
type DiscordAuth struct {
	cfg        *config.Config
	httpClient *http.Client
}

// NewDiscordAuth creates the auth service with proxy settings applied from the
// configuration.
func NewDiscordAuth(cfg *config.Config) *DiscordAuth {
	return &DiscordAuth{
		cfg:        cfg,
		httpClient: util.SetProxy(cfg.ProxyURL, &http.Client{Timeout: requestTimeout}),
	}
}

// AuthorizationURL builds the provider authorize URL for one attempt.
func (o *DiscordAuth) AuthorizationURL(state, redirectURI string, pkceCodes *PKCECodes) (string, error) {
	if pkceCodes == nil {
		return "", fmt.Errorf("PKCE codes are required")
	}

	params := url.Values{
		"client_id":             {o.cfg.ClientID},
		"response_type":         {"code"},
		"redirect_uri":          {redirectURI},
		"scope":                 {strings.Join(o.cfg.Scopes, " ")},
		"state":                 {state},
		"code_challenge":        {pkceCodes.CodeChallenge},
		"code_challenge_method": {"S256"},
	}

	return fmt.Sprintf("%s?%s", o.cfg.AuthorizeURL(), params.Encode()), nil
}

// Exchange trades an authorization code for tokens, proving possession of the
// PKCE verifier. Non-2xx responses surface as *ExchangeError and must not be
// retried by the caller.
func (o *DiscordAuth) Exchange(ctx context.Context, code, verifier, redirectURI string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {o.cfg.ClientID},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"code_verifier": {verifier},
	}

	body, status, err := o.postForm(ctx, data)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &ExchangeError{StatusCode: status, Body: string(body)}
	}
	return parseTokenResponse(body)
}

// Refresh trades a refresh token for a new access/refresh pair. A non-2xx
// response means the refresh token is invalid or revoked; that is terminal
// for the stored session and surfaces as *RefreshError.
func (o *DiscordAuth) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token is required")
	}

	data := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {o.cfg.ClientID},
		"refresh_token": {refreshToken},
	}

	body, status, err := o.postForm(ctx, data)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &RefreshError{StatusCode: status, Body: string(body)}
	}
	return parseTokenResponse(body)
}

// FetchIdentity retrieves the user snapshot stored alongside the tokens at
// login time. It is informational and never re-verified afterwards.
func (o *DiscordAuth) FetchIdentity(ctx context.Context, accessToken string) (*credential.Identity, error) {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, o.cfg.MeURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity lookup failed with status %d: %s", resp.StatusCode, string(body))
	}

	me := gjson.ParseBytes(body)
	return &credential.Identity{
		ID:         me.Get("id").String(),
		Username:   me.Get("username").String(),
		GlobalName: me.Get("global_name").String(),
		Avatar:     me.Get("avatar").String(),
	}, nil
}

func (o *DiscordAuth) postForm(ctx context.Context, data url.Values) ([]byte, int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, o.cfg.TokenURL(), strings.NewReader(data.Encode()))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read token response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func parseTokenResponse(body []byte) (*TokenResponse, error) {
	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token response is missing access_token")
	}
	return &tokenResp, nil
}
