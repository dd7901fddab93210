// Package cmd implements the user-facing commands. Each command is a thin
// wrapper around the auth manager, the API facade or the exporter; all
// user-facing messaging lives here rather than in the core packages.
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/guildexport/guildexport/internal/api"
	"github.com/guildexport/guildexport/internal/auth"
	"github.com/guildexport/guildexport/internal/exporter"
)

// App bundles the wired components the commands operate on.
type App struct {
	Manager  *auth.Manager
	API      *api.Client
	Exporter *exporter.Exporter
}

// LoginOptions mirrors the flow options exposed as CLI flags.
type LoginOptions struct {
	NoBrowser    bool
	CallbackPort int
}

// DoLogin runs the full OAuth authorization flow and reports the outcome.
func (a *App) DoLogin(ctx context.Context, options *LoginOptions) error {
	if options == nil {
		options = &LoginOptions{}
	}

	bundle, err := a.Manager.Login(ctx, &auth.LoginOptions{
		NoBrowser:    options.NoBrowser,
		CallbackPort: options.CallbackPort,
		Prompt:       stdinPrompt,
	})
	if err != nil {
		var oauthErr *auth.OAuthError
		if errors.As(err, &oauthErr) {
			return fmt.Errorf("the provider rejected the authorization (%s); restart the login to try again", oauthErr.Code)
		}
		if errors.Is(err, auth.ErrCallbackTimeout) {
			return fmt.Errorf("timed out waiting for the authorization callback; restart the login to try again")
		}
		return err
	}

	name := bundle.User.GlobalName
	if name == "" {
		name = bundle.User.Username
	}
	fmt.Printf("Logged in as %s. Credentials stored at %s\n", name, a.Manager.CredentialPath())
	return nil
}

// EnsureSession logs in when no session is stored, then returns the stored
// identity for the menu header.
func (a *App) EnsureSession(ctx context.Context, options *LoginOptions) (string, error) {
	if !a.Manager.LoggedIn() {
		fmt.Println("You are not logged in. Authenticating...")
		if err := a.DoLogin(ctx, options); err != nil {
			return "", err
		}
	}
	identity, err := a.Manager.Identity()
	if err != nil {
		return "", err
	}
	fmt.Printf("Welcome back, %s!\n", identity.Username)
	return identity.Username, nil
}

// DoWhoami prints the live identity of the authenticated user.
func (a *App) DoWhoami(ctx context.Context) error {
	user, err := a.API.CurrentUser(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("id:           %s\n", user.ID)
	fmt.Printf("username:     %s\n", user.Username)
	if user.GlobalName != "" {
		fmt.Printf("display name: %s\n", user.GlobalName)
	}
	if user.Avatar != "" {
		fmt.Printf("avatar:       %s\n", user.Avatar)
	}
	return nil
}

// DoGuilds prints the guilds the authenticated user belongs to.
func (a *App) DoGuilds(ctx context.Context) error {
	guilds, err := a.API.Guilds(ctx)
	if err != nil {
		return err
	}
	if len(guilds) == 0 {
		fmt.Println("No guilds.")
		return nil
	}
	for _, guild := range guilds {
		marker := " "
		if guild.Owner {
			marker = "*"
		}
		fmt.Printf("%s %-20s %s\n", marker, guild.ID, guild.Name)
	}
	return nil
}

// DoExport runs one export job through the external exporter binary.
func (a *App) DoExport(ctx context.Context, channelID string, format exporter.Format, media bool) error {
	outputFile, err := a.Exporter.Export(ctx, exporter.Options{
		ChannelID:     channelID,
		Format:        format,
		DownloadMedia: media,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Export complete: %s\n", outputFile)
	if media {
		fmt.Println("Media attachments downloaded as well.")
	}
	return nil
}

// DoLogout deletes the stored credential bundle.
func (a *App) DoLogout() error {
	loggedIn := a.Manager.LoggedIn()
	if err := a.Manager.Logout(); err != nil {
		return err
	}
	if loggedIn {
		fmt.Println("Local tokens deleted.")
	} else {
		fmt.Println("Already logged out.")
	}
	return nil
}

// stdinPrompt reads one line from standard input for the manual-paste
// fallback during login.
func stdinPrompt(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		log.Debugf("prompt read failed: %v", err)
		return "", err
	}
	return strings.TrimSpace(line), nil
}
