package commands

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/podium-chat/podium/internal/cli/output"
	"github.com/podium-chat/podium/internal/cli/prompt"
	"github.com/podium-chat/podium/pkg/identity"
)

var (
	userAddRole    string
	userListOutput string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
	Long: `Manage user accounts on a Podium server.

Listing users requires an admin session (see 'podium login').`,
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Register a new user account",
	Long: `Register a new user account on the server.

The command prompts for the role when --role is not given, and always
prompts for a password. Passwords must be at least 6 characters and
contain both a letter and a digit.

Examples:
  podium user add alice
  podium user add bob --role writer`,
	Args: cobra.ExactArgs(1),
	RunE: runUserAdd,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List user accounts (admin only)",
	RunE:  runUserList,
}

func init() {
	userAddCmd.Flags().StringVar(&userAddRole, "role", "", "Account role (reader|writer); prompts when omitted")
	userListCmd.Flags().StringVarP(&userListOutput, "output", "o", "table", "Output format (table|json|yaml)")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	username := args[0]

	if userAddRole == "" {
		selected, err := prompt.Select("Role", []prompt.SelectOption{
			{Label: "reader", Value: string(identity.RoleReader), Description: "Read messages and watch the event stream"},
			{Label: "writer", Value: string(identity.RoleWriter), Description: "Additionally compete for the writer lock"},
		})
		if err != nil {
			return err
		}
		userAddRole = selected
	}

	role := identity.Role(userAddRole)
	if role != identity.RoleReader && role != identity.RoleWriter {
		return fmt.Errorf("invalid role %q (valid: reader, writer)", userAddRole)
	}

	password, err := prompt.PasswordWithConfirmation("Password", "Confirm password", identity.MinPasswordLength)
	if err != nil {
		return err
	}
	if err := identity.ValidatePassword(password); err != nil {
		return fmt.Errorf("invalid password: %w", err)
	}

	serverURL, err := credentialsServerURL()
	if err != nil {
		return err
	}

	client := newClient(serverURL, "")
	registerReq := map[string]string{
		"username": username,
		"password": password,
		"role":     string(role),
	}
	var session struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	if err := client.call(http.MethodPost, "/api/v1/auth/register", registerReq, &session); err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}

	fmt.Printf("✓ User %q created (role: %s)\n", session.Username, session.Role)
	return nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(userListOutput)
	if err != nil {
		return err
	}

	client, err := newClientFromCredentials()
	if err != nil {
		return err
	}

	var result struct {
		Users []struct {
			Username    string    `json:"username"`
			Role        string    `json:"role"`
			CreatedAt   time.Time `json:"created_at"`
			LastLoginAt time.Time `json:"last_login_at"`
		} `json:"users"`
		Count int `json:"count"`
	}
	if err := client.call(http.MethodGet, "/api/v1/users", nil, &result); err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, result)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, result)
	default:
		if result.Count == 0 {
			fmt.Println("No users registered")
			return nil
		}
		table := output.NewTableData("USERNAME", "ROLE", "CREATED", "LAST LOGIN")
		for _, u := range result.Users {
			lastLogin := "-"
			if !u.LastLoginAt.IsZero() {
				lastLogin = u.LastLoginAt.Local().Format("2006-01-02 15:04:05")
			}
			table.AddRow(u.Username, u.Role, u.CreatedAt.Local().Format("2006-01-02 15:04:05"), lastLogin)
		}
		return output.PrintTable(os.Stdout, table)
	}
}

// credentialsServerURL returns the server URL of the current context,
// falling back to the local default when nobody is logged in yet.
func credentialsServerURL() (string, error) {
	client, err := newClientFromCredentials()
	if err == nil {
		return client.baseURL, nil
	}
	return "http://localhost:8080", nil
}
