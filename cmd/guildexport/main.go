// Package main provides the entry point for guildexport, a CLI that signs a
// user into Discord via OAuth2 Authorization Code + PKCE, persists the token
// bundle and uses it to query read-only endpoints and drive the external
// chat-export binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/guildexport/guildexport/internal/api"
	"github.com/guildexport/guildexport/internal/auth"
	"github.com/guildexport/guildexport/internal/buildinfo"
	"github.com/guildexport/guildexport/internal/cmd"
	"github.com/guildexport/guildexport/internal/config"
	"github.com/guildexport/guildexport/internal/credential"
	"github.com/guildexport/guildexport/internal/exporter"
	"github.com/guildexport/guildexport/internal/logging"
	"github.com/guildexport/guildexport/internal/tui"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	var login bool
	var whoami bool
	var guilds bool
	var logout bool
	var export bool
	var channelID string
	var format string
	var media bool
	var noBrowser bool
	var callbackPort int
	var configPath string
	var showVersion bool

	flag.BoolVar(&login, "login", false, "Log in via OAuth2 Authorization Code + PKCE")
	flag.BoolVar(&whoami, "whoami", false, "Show the authenticated user")
	flag.BoolVar(&guilds, "guilds", false, "List the authenticated user's guilds")
	flag.BoolVar(&logout, "logout", false, "Delete the stored credentials")
	flag.BoolVar(&export, "export", false, "Export a channel via DiscordChatExporter.Cli")
	flag.StringVar(&channelID, "channel", "", "Channel ID to export")
	flag.StringVar(&format, "format", "json", "Export format (json, htmldark, htmllight, csv)")
	flag.BoolVar(&media, "media", false, "Download media attachments during export")
	flag.BoolVar(&noBrowser, "no-browser", false, "Don't open the browser automatically for OAuth")
	flag.IntVar(&callbackPort, "oauth-callback-port", 0, "Override the OAuth callback port (defaults to the redirect URI's port)")
	flag.StringVar(&configPath, "config", "config.yaml", "Configuration file path")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("guildexport %s (%s, built %s)\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		return
	}

	// Optional .env file for CLIENT_ID / REDIRECT_URI during development.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Debugf(".env not loaded: %v", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		var missing *config.MissingEnvError
		if errors.As(err, &missing) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logging.SetDebug(cfg.Debug)
	if cfg.LoggingToFile {
		if err = logging.EnableFileOutput(cfg.AuthDir); err != nil {
			log.Warnf("file logging disabled: %v", err)
		}
	}

	store := credential.NewStore(cfg.AuthDir)
	manager := auth.NewManager(store, auth.NewDiscordAuth(cfg))
	app := &cmd.App{
		Manager:  manager,
		API:      api.NewClient(cfg, manager),
		Exporter: exporter.New(cfg.ExporterPath, cfg.ExportDir, manager),
	}

	// A user interrupt during the login wait still shuts the callback server
	// down gracefully before the process exits.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loginOpts := &cmd.LoginOptions{NoBrowser: noBrowser, CallbackPort: callbackPort}

	switch {
	case login:
		err = app.DoLogin(ctx, loginOpts)
	case whoami:
		err = app.DoWhoami(ctx)
	case guilds:
		err = app.DoGuilds(ctx)
	case logout:
		err = app.DoLogout()
	case export:
		err = runExport(ctx, app, channelID, format, media)
	default:
		err = runMenu(ctx, app, loginOpts)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Interrupted.")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runExport(ctx context.Context, app *cmd.App, channelID, formatName string, media bool) error {
	if channelID == "" {
		return fmt.Errorf("-channel is required with -export")
	}
	format, err := exporter.ParseFormat(formatName)
	if err != nil {
		return err
	}
	return app.DoExport(ctx, channelID, format, media)
}

// runMenu is the default mode: make sure a session exists, then loop on the
// interactive menu until the user exits or logs out.
func runMenu(ctx context.Context, app *cmd.App, loginOpts *cmd.LoginOptions) error {
	username, err := app.EnsureSession(ctx, loginOpts)
	if err != nil {
		return err
	}

	for {
		selection, err := tui.Run(username)
		if err != nil {
			return err
		}

		switch selection.Action {
		case tui.ActionWhoami:
			err = app.DoWhoami(ctx)
		case tui.ActionGuilds:
			err = app.DoGuilds(ctx)
		case tui.ActionExport:
			req := selection.Export
			err = app.DoExport(ctx, req.ChannelID, req.Format, req.DownloadMedia)
		case tui.ActionLogout:
			return app.DoLogout()
		case tui.ActionQuit:
			fmt.Println("Goodbye!")
			return nil
		}

		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			// A failed command returns to the menu instead of exiting.
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
}
