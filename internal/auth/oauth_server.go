package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// callbackPath is the only path the loopback server answers.
const callbackPath = "/callback"

// CallbackResult is the one-shot outcome of the provider redirect. Exactly one
// of Code or Error is populated.
type CallbackResult struct {
	// Code is the authorization code received from the provider.
	Code string
	// State echoes the state parameter for CSRF verification.
	State string
	// Error is the provider-supplied error code, if the user denied access
	// or the request was rejected.
	Error string
}

// CallbackServer is a short-lived HTTP listener on 127.0.0.1 that receives the
// OAuth redirect. The first relevant callback wins; duplicates are answered
// but never overwrite the latched result. The server is owned by a single
// login attempt and must be stopped on every code path.
type CallbackServer struct {
	preferredPort int

	mu       sync.Mutex
	server   *http.Server
	port     int
	running  bool
	result   *CallbackResult
	done     chan struct{}
	serveErr chan error
}

// NewCallbackServer creates a callback server that will try to bind the
// preferred port and fall back to an OS-assigned one.
func NewCallbackServer(preferredPort int) *CallbackServer {
	return &CallbackServer{
		preferredPort: preferredPort,
		done:          make(chan struct{}),
		serveErr:      make(chan error, 1),
	}
}

// Start binds the listener and begins serving on its own goroutine. It returns
// the actually bound port so the caller can construct a matching redirect URI.
func (s *CallbackServer) Start() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return 0, fmt.Errorf("callback server is already running")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.preferredPort))
	if err != nil {
		log.Debugf("port %d unavailable (%v), falling back to an ephemeral port", s.preferredPort, err)
		listener, err = net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return 0, NewAuthenticationError(ErrServerStartFailed, err)
		}
	}
	s.port = listener.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, s.handleCallback)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	s.running = true

	server := s.server
	go func() {
		if errServe := server.Serve(listener); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			select {
			case s.serveErr <- errServe:
			default:
			}
		}
	}()

	log.Debugf("OAuth callback server listening on 127.0.0.1:%d", s.port)
	return s.port, nil
}

// Port returns the bound port. Valid only after Start succeeded.
func (s *CallbackServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// WaitForResult blocks the calling goroutine (never the listener) until the
// first callback is latched, the listener fails, or the timeout elapses.
// A timeout is reported as ErrCallbackTimeout, distinct from provider errors.
func (s *CallbackServer) WaitForResult(timeout time.Duration) (*CallbackResult, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.result, nil
	case err := <-s.serveErr:
		return nil, NewAuthenticationError(ErrServerStartFailed, err)
	case <-timer.C:
		return nil, NewAuthenticationError(ErrCallbackTimeout, fmt.Errorf("no callback within %s", timeout))
	}
}

// Stop shuts the server down and releases the port. It is safe to call after a
// result arrived, after a timeout, or more than once.
func (s *CallbackServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.running = false
	s.mu.Unlock()

	if server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// latch records the first result and signals waiters. Later results lose.
func (s *CallbackServer) latch(result *CallbackResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result != nil {
		return false
	}
	s.result = result
	close(s.done)
	return true
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	result := &CallbackResult{State: query.Get("state")}
	switch {
	case query.Get("error") != "":
		result.Error = query.Get("error")
	case query.Get("code") != "":
		result.Code = query.Get("code")
	default:
		result.Error = "missing_code"
	}

	if s.latch(result) {
		log.Debug("OAuth callback received")
	} else {
		log.Debug("duplicate OAuth callback ignored")
	}

	// The browser always gets a friendly page; errors surface on the CLI.
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(callbackPageHTML)); err != nil {
		log.Debugf("failed to write callback page: %v", err)
	}
}
