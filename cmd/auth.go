package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/desertthunder/ytpull/internal/server"
	"github.com/desertthunder/ytpull/internal/services"
	"github.com/desertthunder/ytpull/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// AuthLogin performs the OAuth2 authorization code flow for the YouTube Data API.
//
// Starts a local HTTP server, opens the browser for consent, and stores the exchanged token.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	provider, err := r.oauthProvider()
	if err != nil {
		if errors.Is(err, shared.ErrMissingCredentials) {
			return fmt.Errorf("%w (download an OAuth client ID of type \"Desktop app\" from the Google Cloud console)", err)
		}
		return err
	}

	token, err := r.doOAuth(ctx, provider, cmd.Duration("timeout"), !cmd.Bool("no-browser"))
	if err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Token saved to %s\n", provider.TokenPath())
	if token.RefreshToken == "" {
		r.writePlain("⚠ No refresh token was issued, you will need to log in again when it expires.\n")
	}
	r.writePlain("\nYou can now use: ytpull playlists\n")
	return nil
}

// AuthStatus reports on the cached token without refreshing it.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	provider, err := r.oauthProvider()
	if err != nil {
		return err
	}

	status := provider.Status()
	if r.useJSON {
		return r.writeJSON(status, true)
	}

	if !status.Present {
		return r.writePlain("✗ Not authenticated (no token at %s)\nRun: ytpull auth login\n", status.Path)
	}

	r.writePlain("Token: %s\n", status.Path)
	r.writePlain("Expires: %s\n", status.Expiry.Local().Format(time.RFC1123))
	switch {
	case !status.Expired:
		r.writePlain("✓ Access token is valid\n")
	case status.Refreshable:
		r.writePlain("✓ Access token expired, it will be refreshed on next use\n")
	default:
		r.writePlain("✗ Access token expired and cannot be refreshed, run: ytpull auth login\n")
	}
	return nil
}

// AuthRevoke revokes the token with Google and deletes the cached copy.
func (r *Runner) AuthRevoke(ctx context.Context, cmd *cli.Command) error {
	provider, err := r.oauthProvider()
	if err != nil {
		return err
	}

	if err := provider.Revoke(ctx); err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, shared.ErrNotAuthenticated) {
			return r.writePlain("Nothing to revoke\n")
		}
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	return r.writePlain("✓ Token revoked and removed\n")
}

func (r *Runner) doOAuth(ctx context.Context, provider *services.OAuthProvider, timeout time.Duration, openBrowser bool) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := provider.AuthCodeURL(state)
	oauthHandler := server.NewOAuthHandler(provider, state)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(oauthHandler)

	serverAddr := net.JoinHostPort(r.config.Server.Host, fmt.Sprint(r.config.Server.Port))
	listener, err := net.Listen("tcp", serverAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", serverAddr, err)
	}

	httpServer := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", serverAddr)
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	opened := false
	if openBrowser {
		r.writePlain("→ Opening browser for Google authorization...\n")
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
		} else {
			opened = true
		}
	}
	if !opened {
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timer.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}
