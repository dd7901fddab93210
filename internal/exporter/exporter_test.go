package exporter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) GetValidAccessToken(context.Context) (string, error) {
	return s.token, s.err
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{input: "json", want: FormatJSON},
		{input: "JSON", want: FormatJSON},
		{input: " Json ", want: FormatJSON},
		{input: "html", want: FormatHTMLDark},
		{input: "htmldark", want: FormatHTMLDark},
		{input: "HtmlLight", want: FormatHTMLLight},
		{input: "csv", want: FormatCSV},
		{input: "xml", wantErr: true},
		{input: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseFormat(%q) = %q, want error", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFormat(%q) error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFormatExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format Format
		want   string
	}{
		{FormatJSON, "json"},
		{FormatHTMLDark, "html"},
		{FormatHTMLLight, "html"},
		{FormatCSV, "csv"},
		{Format("bogus"), "dat"},
	}
	for _, tt := range tests {
		if got := tt.format.Extension(); got != tt.want {
			t.Errorf("%q.Extension() = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestBuildArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{
			name: "json without media",
			opts: Options{ChannelID: "123", Format: FormatJSON},
			want: []string{"export", "--channel", "123", "--token", "tok1", "-f", "Json", "-o", "out.json"},
		},
		{
			name: "html dark with media",
			opts: Options{ChannelID: "456", Format: FormatHTMLDark, DownloadMedia: true},
			want: []string{"export", "--channel", "456", "--token", "tok1", "-f", "HtmlDark", "-o", "out.json", "--media"},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := buildArgs(tt.opts, "tok1", "out.json")
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("buildArgs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExportValidation(t *testing.T) {
	t.Parallel()

	e := New("true", t.TempDir(), staticTokens{token: "tok1"})
	if _, err := e.Export(context.Background(), Options{ChannelID: "  "}); err == nil {
		t.Error("Export() must reject a blank channel id")
	}
}

func TestExportTokenSourceErrorPropagates(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("no session")
	e := New("true", t.TempDir(), staticTokens{err: sentinel})
	if _, err := e.Export(context.Background(), Options{ChannelID: "123"}); !errors.Is(err, sentinel) {
		t.Errorf("Export() error = %v, want the token source error", err)
	}
}

// TestExportSpawnsBinary drives Export against a stub shell script standing in
// for the exporter binary, recording its argv.
func TestExportSpawnsBinary(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("stub script requires a unix shell")
	}

	dir := t.TempDir()
	argvFile := filepath.Join(dir, "argv")
	stub := filepath.Join(dir, "stub-exporter")
	script := "#!/bin/sh\nprintf '%s\\n' \"$@\" > " + argvFile + "\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	outDir := filepath.Join(dir, "exports")
	e := New(stub, outDir, staticTokens{token: "tok1"})
	outputFile, err := e.Export(context.Background(), Options{ChannelID: "789", Format: FormatCSV})
	if err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	wantOutput := filepath.Join(outDir, "export_789.csv")
	if outputFile != wantOutput {
		t.Errorf("output path = %q, want %q", outputFile, wantOutput)
	}

	recorded, err := os.ReadFile(argvFile)
	if err != nil {
		t.Fatalf("stub was not invoked: %v", err)
	}
	got := strings.Split(strings.TrimRight(string(recorded), "\n"), "\n")
	want := []string{"export", "--channel", "789", "--token", "tok1", "-f", "Csv", "-o", wantOutput}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("stub argv = %v, want %v", got, want)
	}
}

func TestExportBinaryFailure(t *testing.T) {
	t.Parallel()

	e := New("false", t.TempDir(), staticTokens{token: "tok1"})
	if _, err := e.Export(context.Background(), Options{ChannelID: "123"}); err == nil {
		t.Error("Export() must surface a non-zero exit from the binary")
	}
}
