package misc

import (
	"regexp"
	"testing"
)

func TestGenerateRandomState(t *testing.T) {
	t.Parallel()

	hex32 := regexp.MustCompile(`^[0-9a-f]{32}$`)
	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		state, err := GenerateRandomState()
		if err != nil {
			t.Fatalf("GenerateRandomState() error: %v", err)
		}
		if !hex32.MatchString(state) {
			t.Fatalf("state %q is not 32 hex chars", state)
		}
		if seen[state] {
			t.Fatalf("state %q repeated", state)
		}
		seen[state] = true
	}
}

func TestParseOAuthCallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    *OAuthCallback
		wantErr bool
	}{
		{
			name:  "full redirect URL",
			input: "http://127.0.0.1:53682/callback?code=abc123&state=xyz",
			want:  &OAuthCallback{Code: "abc123", State: "xyz"},
		},
		{
			name:  "bare query string",
			input: "code=abc123&state=xyz",
			want:  &OAuthCallback{Code: "abc123", State: "xyz"},
		},
		{
			name:  "question-mark prefixed query",
			input: "?code=abc123&state=xyz",
			want:  &OAuthCallback{Code: "abc123", State: "xyz"},
		},
		{
			name:  "host and path without scheme",
			input: "127.0.0.1:53682/callback?code=abc123",
			want:  &OAuthCallback{Code: "abc123"},
		},
		{
			name:  "provider error",
			input: "http://127.0.0.1:53682/callback?error=access_denied&error_description=denied&state=xyz",
			want:  &OAuthCallback{Error: "access_denied", ErrorDescription: "denied", State: "xyz"},
		},
		{
			name:  "surrounding whitespace",
			input: "  ?code=abc123&state=xyz \n",
			want:  &OAuthCallback{Code: "abc123", State: "xyz"},
		},
		{
			name:  "empty input means keep waiting",
			input: "   \n",
			want:  nil,
		},
		{
			name:    "neither code nor error",
			input:   "http://127.0.0.1:53682/callback?state=xyz",
			wantErr: true,
		},
		{
			name:    "unrecognizable input",
			input:   "lolwut",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseOAuthCallback(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseOAuthCallback(%q) = %+v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOAuthCallback(%q) error: %v", tt.input, err)
			}
			if tt.want == nil {
				if got != nil {
					t.Fatalf("ParseOAuthCallback(%q) = %+v, want nil", tt.input, got)
				}
				return
			}
			if got == nil || *got != *tt.want {
				t.Errorf("ParseOAuthCallback(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}
