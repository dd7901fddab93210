package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"
)

func startTestServer(t *testing.T) (*CallbackServer, int) {
	t.Helper()
	server := NewCallbackServer(0)
	port, err := server.Start()
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	return server, port
}

func hitCallback(t *testing.T, port int, query string) *http.Response {
	t.Helper()
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/callback?%s", port, query))
	if err != nil {
		t.Fatalf("callback request failed: %v", err)
	}
	_ = resp.Body.Close()
	return resp
}

func TestCallbackFirstCodeWins(t *testing.T) {
	server, port := startTestServer(t)

	if resp := hitCallback(t, port, "code=ABC&state=s1"); resp.StatusCode != http.StatusOK {
		t.Fatalf("first callback status = %d, want 200", resp.StatusCode)
	}
	if resp := hitCallback(t, port, "code=XYZ&state=s2"); resp.StatusCode != http.StatusOK {
		t.Fatalf("duplicate callback status = %d, want 200", resp.StatusCode)
	}

	result, err := server.WaitForResult(time.Second)
	if err != nil {
		t.Fatalf("WaitForResult() error: %v", err)
	}
	if result.Code != "ABC" || result.State != "s1" {
		t.Errorf("latched result = %+v, want code ABC state s1", result)
	}
}

func TestCallbackErrorNotClobberedByLaterCode(t *testing.T) {
	server, port := startTestServer(t)

	hitCallback(t, port, "error=access_denied&state=s1")
	hitCallback(t, port, "code=ABC&state=s1")

	result, err := server.WaitForResult(time.Second)
	if err != nil {
		t.Fatalf("WaitForResult() error: %v", err)
	}
	if result.Error != "access_denied" || result.Code != "" {
		t.Errorf("latched result = %+v, want error access_denied", result)
	}
}

func TestCallbackMissingParamsLatchesError(t *testing.T) {
	server, port := startTestServer(t)

	hitCallback(t, port, "")

	result, err := server.WaitForResult(time.Second)
	if err != nil {
		t.Fatalf("WaitForResult() error: %v", err)
	}
	if result.Error != "missing_code" {
		t.Errorf("latched result = %+v, want error missing_code", result)
	}
}

func TestCallbackUnknownPathIs404(t *testing.T) {
	_, port := startTestServer(t)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/other", port))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestWaitForResultTimeoutReleasesPort(t *testing.T) {
	server := NewCallbackServer(0)
	port, err := server.Start()
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	_, err = server.WaitForResult(50 * time.Millisecond)
	if !errors.Is(err, ErrCallbackTimeout) {
		t.Fatalf("WaitForResult() error = %v, want callback timeout", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err = server.Stop(ctx); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	// Stopping twice must be safe.
	if err = server.Stop(ctx); err != nil {
		t.Fatalf("second Stop() error: %v", err)
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		t.Fatalf("port %d was not released: %v", port, err)
	}
	_ = listener.Close()
}

func TestStartFallsBackToEphemeralPort(t *testing.T) {
	// Occupy a port, then ask the server to prefer it.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = listener.Close() }()
	taken := listener.Addr().(*net.TCPAddr).Port

	server := NewCallbackServer(taken)
	port, err := server.Start()
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	}()

	if port == taken {
		t.Errorf("Start() reused the occupied port %d", taken)
	}
	if port == 0 {
		t.Error("Start() returned port 0")
	}
}
