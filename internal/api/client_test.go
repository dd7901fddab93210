package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/guildexport/guildexport/internal/config"
)

// staticTokens is a TokenSource returning a fixed token or error.
type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) GetValidAccessToken(context.Context) (string, error) {
	return s.token, s.err
}

func newTestClient(t *testing.T, handler http.Handler, tokens TokenSource) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(&config.Config{APIRoot: ts.URL + "/"}, tokens)
}

func TestCurrentUser(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/@me" {
			t.Errorf("path = %q, want /users/@me", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok1" {
			t.Errorf("Authorization = %q, want Bearer tok1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"42","username":"trogdor","global_name":"Trogdor","avatar":"a1b2"}`))
	})
	client := newTestClient(t, handler, staticTokens{token: "tok1"})

	user, err := client.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser() error: %v", err)
	}
	want := User{ID: "42", Username: "trogdor", GlobalName: "Trogdor", Avatar: "a1b2"}
	if *user != want {
		t.Errorf("CurrentUser() = %+v, want %+v", user, want)
	}
}

func TestGuilds(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/@me/guilds" {
			t.Errorf("path = %q, want /users/@me/guilds", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"1","name":"Homestar Runner","owner":true,"permissions":"104324673"},
			{"id":"2","name":"Strong Bad Emails","owner":false}
		]`))
	})
	client := newTestClient(t, handler, staticTokens{token: "tok1"})

	guilds, err := client.Guilds(context.Background())
	if err != nil {
		t.Fatalf("Guilds() error: %v", err)
	}
	want := []Guild{
		{ID: "1", Name: "Homestar Runner", Owner: true},
		{ID: "2", Name: "Strong Bad Emails", Owner: false},
	}
	if len(guilds) != len(want) {
		t.Fatalf("Guilds() returned %d entries, want %d", len(guilds), len(want))
	}
	for i := range want {
		if guilds[i] != want[i] {
			t.Errorf("guild[%d] = %+v, want %+v", i, guilds[i], want[i])
		}
	}
}

func TestGuildsRejectsNonArrayPayload(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"not a list"}`))
	})
	client := newTestClient(t, handler, staticTokens{token: "tok1"})

	if _, err := client.Guilds(context.Background()); err == nil {
		t.Fatal("Guilds() must reject a non-array payload")
	}
}

func TestAPIError(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"401: Unauthorized","code":0}`))
	})
	client := newTestClient(t, handler, staticTokens{token: "tok1"})

	_, err := client.CurrentUser(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("CurrentUser() error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", apiErr.StatusCode)
	}
}

func TestTokenSourceErrorPropagates(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("no session")
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request must be made when the token source fails")
	})
	client := newTestClient(t, handler, staticTokens{err: sentinel})

	if _, err := client.CurrentUser(context.Background()); !errors.Is(err, sentinel) {
		t.Errorf("CurrentUser() error = %v, want the token source error", err)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("0123456789abcdef", 10); got != "0123456789..." {
		t.Errorf("truncate() = %q", got)
	}
}
