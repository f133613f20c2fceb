package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the TaskFlow backend",
	RunE:  runLogin,
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and sign in",
	RunE:  runSignup,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored session",
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE:  runWhoami,
}

func init() {
	loginCmd.Flags().String("email", "", "account email (prompted when omitted)")
	signupCmd.Flags().String("email", "", "account email (prompted when omitted)")
	signupCmd.Flags().String("name", "", "display name")
	rootCmd.AddCommand(loginCmd, signupCmd, logoutCmd, whoamiCmd)
}

// promptCredentials collects email and password interactively. The
// password never echoes.
func promptCredentials(email string) (string, string, error) {
	rl, err := readline.New("")
	if err != nil {
		return "", "", fmt.Errorf("open terminal: %w", err)
	}
	defer rl.Close()

	if strings.TrimSpace(email) == "" {
		rl.SetPrompt("Email: ")
		line, err := rl.Readline()
		if err != nil {
			return "", "", fmt.Errorf("read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}
	if email == "" {
		return "", "", fmt.Errorf("email is required")
	}

	pw, err := rl.ReadPassword("Password: ")
	if err != nil {
		return "", "", fmt.Errorf("read password: %w", err)
	}
	if len(pw) == 0 {
		return "", "", fmt.Errorf("password is required")
	}

	return email, string(pw), nil
}

func runLogin(cmd *cobra.Command, _ []string) error {
	flagEmail, _ := cmd.Flags().GetString("email")
	email, password, err := promptCredentials(flagEmail)
	if err != nil {
		return err
	}

	_, session, err := newSession()
	if err != nil {
		return err
	}
	user, err := session.SignIn(context.Background(), email, password)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}

	fmt.Printf("Signed in as %s\n", user.Email)
	return nil
}

func runSignup(cmd *cobra.Command, _ []string) error {
	flagEmail, _ := cmd.Flags().GetString("email")
	name, _ := cmd.Flags().GetString("name")

	email, password, err := promptCredentials(flagEmail)
	if err != nil {
		return err
	}

	_, session, err := newSession()
	if err != nil {
		return err
	}
	user, err := session.SignUp(context.Background(), email, password, name)
	if err != nil {
		return fmt.Errorf("sign up: %w", err)
	}

	fmt.Printf("Account created. Signed in as %s\n", user.Email)
	return nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	_, session, err := newSession()
	if err != nil {
		return err
	}
	if err := session.SignOut(); err != nil {
		return err
	}
	fmt.Println("Signed out.")
	return nil
}

func runWhoami(_ *cobra.Command, _ []string) error {
	_, session, err := newSession()
	if err != nil {
		return err
	}
	user, ok := session.User()
	if !ok {
		return fmt.Errorf("not signed in")
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(user)
	}
	fmt.Printf("%s (%s)\n", user.Email, user.ID)
	if !session.Authenticated() {
		fmt.Println("Session expired; run `taskflow login` to renew.")
	}
	return nil
}
