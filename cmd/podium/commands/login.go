package commands

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/podium-chat/podium/internal/cli/credentials"
	"github.com/podium-chat/podium/internal/cli/prompt"
)

var (
	loginServer   string
	loginUsername string
	loginContext  string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to a Podium server",
	Long: `Authenticate against a Podium server and store the session token
for later commands.

Examples:
  # Log in to the local server (prompts for credentials)
  podium login

  # Log in to a remote server
  podium login --server http://chat.example.com:8080

  # Log in under a named context
  podium login --server http://staging:8080 --context staging`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out from the current Podium server",
	Long: `Drop the server-side session and remove the stored token.

A held writer lock is released on the server once the session is gone.`,
	RunE: runLogout,
}

func init() {
	loginCmd.Flags().StringVar(&loginServer, "server", "http://localhost:8080", "Server URL")
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username (prompted if not given)")
	loginCmd.Flags().StringVar(&loginContext, "context", "default", "Context name to store the session under")
}

func runLogin(cmd *cobra.Command, args []string) error {
	username := loginUsername
	var err error
	if username == "" {
		username, err = prompt.InputRequired("Username")
		if err != nil {
			return err
		}
	}

	password, err := prompt.Password("Password")
	if err != nil {
		return err
	}

	client := newClient(loginServer, "")
	var session struct {
		Username string `json:"username"`
		Role     string `json:"role"`
		Token    string `json:"token"`
	}
	loginReq := map[string]string{"username": username, "password": password}
	if err := client.call(http.MethodPost, "/api/v1/auth/login", loginReq, &session); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	expiresAt := tokenExpiry(session.Token)
	if expiresAt.IsZero() {
		// Server tokens carry an exp claim; if decoding fails, assume
		// the default lifetime so the stored session is still usable.
		expiresAt = time.Now().Add(55 * time.Minute)
	}

	store, err := credentials.NewStore()
	if err != nil {
		return err
	}
	ctx := &credentials.Context{
		ServerURL: loginServer,
		Username:  session.Username,
		Token:     session.Token,
		ExpiresAt: expiresAt,
	}
	if err := store.SetContext(loginContext, ctx); err != nil {
		return err
	}
	if err := store.UseContext(loginContext); err != nil {
		return err
	}

	fmt.Printf("Logged in to %s as %s (role: %s)\n", loginServer, session.Username, session.Role)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return err
	}
	ctx, err := store.GetCurrentContext()
	if err != nil {
		return err
	}

	// Best effort: the token may already be expired, and the local
	// session should be cleared either way.
	if !ctx.IsExpired() {
		client := newClient(ctx.ServerURL, ctx.Token)
		if err := client.call(http.MethodPost, "/api/v1/auth/logout", struct{}{}, nil); err != nil {
			PrintErr("Warning: server logout failed: %v", err)
		}
	}

	if err := store.ClearCurrentContext(); err != nil {
		return err
	}

	fmt.Printf("Logged out from %s\n", ctx.ServerURL)
	return nil
}
