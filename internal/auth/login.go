package auth

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/atotto/clipboard"
	log "github.com/sirupsen/logrus"

	"github.com/guildexport/guildexport/internal/credential"
	"github.com/guildexport/guildexport/internal/misc"
	"github.com/guildexport/guildexport/internal/util"
)

// defaultLoginTimeout bounds the whole wait for the provider redirect.
const defaultLoginTimeout = 300 * time.Second

// defaultCallbackPort is used when the configured redirect URI has no explicit
// port.
const defaultCallbackPort = 53682

// manualPromptDelay is how long the flow waits before offering the manual
// paste fallback.
const manualPromptDelay = 15 * time.Second

// LoginOptions control one login attempt.
type LoginOptions struct {
	// NoBrowser skips opening the browser and prints the URL instead.
	NoBrowser bool
	// CallbackPort overrides the preferred loopback port.
	CallbackPort int
	// Timeout overrides the overall redirect wait (default 300s).
	Timeout time.Duration
	// Prompt, when set, lets the user paste the redirected URL manually as a
	// secondary code source. The local callback server stays authoritative.
	Prompt func(prompt string) (string, error)
}

// Login runs the full authorization dance: PKCE pair and random state, the
// loopback callback server, the browser hand-off, the code wait, the token
// exchange, the identity snapshot fetch, and persistence of the bundle.
// The callback server is shut down on every path out of this function.
func (m *Manager) Login(ctx context.Context, opts *LoginOptions) (*credential.Bundle, error) {
	if opts == nil {
		opts = &LoginOptions{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultLoginTimeout
	}
	cfg := m.svc.cfg

	pkceCodes, err := GeneratePKCECodes()
	if err != nil {
		return nil, fmt.Errorf("pkce generation failed: %w", err)
	}
	state, err := misc.GenerateRandomState()
	if err != nil {
		return nil, fmt.Errorf("state generation failed: %w", err)
	}

	preferredPort := opts.CallbackPort
	if preferredPort <= 0 {
		preferredPort = redirectPort(cfg.RedirectURI)
	}

	server := NewCallbackServer(preferredPort)
	port, err := server.Start()
	if err != nil {
		return nil, err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if stopErr := server.Stop(stopCtx); stopErr != nil {
			log.Warnf("callback server stop error: %v", stopErr)
		}
	}()

	redirectURI, err := rewriteRedirectPort(cfg.RedirectURI, port)
	if err != nil {
		return nil, err
	}
	if port != preferredPort {
		log.Warnf("preferred port %d was taken, using %d; the redirect URI %s must be registered with the application", preferredPort, port, redirectURI)
	}

	authURL, err := m.svc.AuthorizationURL(state, redirectURI, pkceCodes)
	if err != nil {
		return nil, err
	}

	m.handOffToBrowser(authURL, port, opts.NoBrowser)

	fmt.Println("Waiting for the authorization callback...")
	result, err := m.awaitCallback(ctx, server, timeout, opts.Prompt)
	if err != nil {
		return nil, err
	}

	if result.Error != "" {
		return nil, NewOAuthError(result.Error, "", 0)
	}
	if result.State != state {
		log.Errorf("state mismatch: expected %s, got %s", state, result.State)
		return nil, NewAuthenticationError(ErrInvalidState, fmt.Errorf("state mismatch"))
	}

	log.Debug("authorization code received, exchanging for tokens")
	tokenResp, err := m.svc.Exchange(ctx, result.Code, pkceCodes.CodeVerifier, redirectURI)
	if err != nil {
		return nil, NewAuthenticationError(ErrCodeExchangeFailed, err)
	}

	identity, err := m.svc.FetchIdentity(ctx, tokenResp.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("identity lookup failed: %w", err)
	}

	bundle := &credential.Bundle{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		TokenType:    tokenResp.TokenType,
		Scope:        tokenResp.Scope,
		ExpiresIn:    tokenResp.ExpiresIn,
		ObtainedAt:   m.now().Unix(),
		ClientID:     cfg.ClientID,
		RedirectURI:  redirectURI,
		User:         *identity,
	}
	if bundle.TokenType == "" {
		bundle.TokenType = "Bearer"
	}

	if err = m.store.Save(bundle); err != nil {
		return nil, err
	}

	log.Infof("logged in as %s (%s), credentials stored at %s", identity.Username, identity.ID, m.store.Path())
	return bundle, nil
}

// handOffToBrowser opens the authorization URL, or prints it (plus SSH tunnel
// hints and a clipboard copy) when a browser is not an option.
func (m *Manager) handOffToBrowser(authURL string, port int, noBrowser bool) {
	if !noBrowser {
		fmt.Println("Opening browser for authentication")
		err := m.openBrowser(authURL)
		if err == nil {
			return
		}
		log.Warnf("failed to open browser automatically: %v", err)
	}

	if err := clipboard.WriteAll(authURL); err == nil {
		fmt.Println("The authorization URL was copied to your clipboard.")
	}
	util.PrintSSHTunnelInstructions(port)
	fmt.Printf("Visit the following URL to continue authentication:\n%s\n", authURL)
}

// awaitCallback waits for the callback server's result with the overall
// timeout, honoring cancellation and the optional manual paste fallback.
// When both sources produce a result, the server's is used: it alone reliably
// carries the error and state parameters.
func (m *Manager) awaitCallback(ctx context.Context, server *CallbackServer, timeout time.Duration, prompt func(string) (string, error)) (*CallbackResult, error) {
	resultCh := make(chan *CallbackResult, 1)
	errCh := make(chan error, 1)
	go func() {
		result, err := server.WaitForResult(timeout)
		if err != nil {
			errCh <- err
			return
		}
		resultCh <- result
	}()

	var promptC <-chan time.Time
	if prompt != nil {
		promptTimer := time.NewTimer(manualPromptDelay)
		defer promptTimer.Stop()
		promptC = promptTimer.C
	}

	for {
		select {
		case result := <-resultCh:
			return result, nil
		case err := <-errCh:
			return nil, err
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-promptC:
			promptC = nil
			input, errPrompt := prompt("Paste the callback URL (or press Enter to keep waiting): ")
			if errPrompt != nil {
				return nil, errPrompt
			}
			// The server may have latched while the user was typing.
			select {
			case result := <-resultCh:
				return result, nil
			default:
			}
			parsed, errParse := misc.ParseOAuthCallback(input)
			if errParse != nil {
				return nil, errParse
			}
			if parsed == nil {
				continue
			}
			return &CallbackResult{Code: parsed.Code, State: parsed.State, Error: parsed.Error}, nil
		}
	}
}

// redirectPort extracts the preferred port from the configured redirect URI.
func redirectPort(redirectURI string) int {
	parsed, err := url.Parse(redirectURI)
	if err != nil {
		return defaultCallbackPort
	}
	if p := parsed.Port(); p != "" {
		if port, errConv := strconv.Atoi(p); errConv == nil {
			return port
		}
	}
	return defaultCallbackPort
}

// rewriteRedirectPort keeps the configured redirect URI consistent with the
// actually bound port when the preferred one was unavailable.
func rewriteRedirectPort(redirectURI string, port int) (string, error) {
	parsed, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URI %q: %w", redirectURI, err)
	}
	parsed.Host = net.JoinHostPort(parsed.Hostname(), strconv.Itoa(port))
	return parsed.String(), nil
}
