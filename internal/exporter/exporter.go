// Package exporter drives the external DiscordChatExporter.Cli binary. The
// argument grammar lives entirely here; the rest of the program only supplies
// a valid token through the lifecycle manager.
package exporter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Format selects the export file format understood by the exporter binary.
type Format string

const (
	FormatJSON      Format = "Json"
	FormatHTMLDark  Format = "HtmlDark"
	FormatHTMLLight Format = "HtmlLight"
	FormatCSV       Format = "Csv"
)

// Extension returns the output file extension for the format.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatHTMLDark, FormatHTMLLight:
		return "html"
	case FormatCSV:
		return "csv"
	default:
		return "dat"
	}
}

// ParseFormat resolves a user-supplied format name, case-insensitively.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return FormatJSON, nil
	case "html", "htmldark":
		return FormatHTMLDark, nil
	case "htmllight":
		return FormatHTMLLight, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown export format %q (json, htmldark, htmllight, csv)", name)
	}
}

// TokenSource supplies an access token guaranteed valid at time of return.
type TokenSource interface {
	GetValidAccessToken(ctx context.Context) (string, error)
}

// Options describe one export job.
type Options struct {
	ChannelID     string
	Format        Format
	DownloadMedia bool
}

// Exporter spawns the export binary with a bearer token.
type Exporter struct {
	binaryPath string
	outputDir  string
	tokens     TokenSource
}

// New creates an exporter for the given binary and output directory.
func New(binaryPath, outputDir string, tokens TokenSource) *Exporter {
	return &Exporter{binaryPath: binaryPath, outputDir: outputDir, tokens: tokens}
}

// Export runs one export job and returns the output file path.
func (e *Exporter) Export(ctx context.Context, opts Options) (string, error) {
	if strings.TrimSpace(opts.ChannelID) == "" {
		return "", fmt.Errorf("channel id is required")
	}
	if opts.Format == "" {
		opts.Format = FormatJSON
	}

	token, err := e.tokens.GetValidAccessToken(ctx)
	if err != nil {
		return "", err
	}

	if err = os.MkdirAll(e.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	outputFile := filepath.Join(e.outputDir, fmt.Sprintf("export_%s.%s", opts.ChannelID, opts.Format.Extension()))
	args := buildArgs(opts, token, outputFile)

	jobID := uuid.NewString()[:8]
	log.WithFields(log.Fields{"job": jobID, "channel": opts.ChannelID, "format": opts.Format}).Info("starting export")

	cmd := exec.CommandContext(ctx, e.binaryPath, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err = cmd.Run(); err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	log.WithField("job", jobID).Infof("export complete: %s", outputFile)
	return outputFile, nil
}

// buildArgs assembles the exporter binary's command line. The token is passed
// as-is; the binary authenticates with it directly.
func buildArgs(opts Options, token, outputFile string) []string {
	args := []string{
		"export",
		"--channel", opts.ChannelID,
		"--token", token,
		"-f", string(opts.Format),
		"-o", outputFile,
	}
	if opts.DownloadMedia {
		args = append(args, "--media")
	}
	return args
}
