package cli

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yapay-ai/garmin-downloader/pkg/session"
	"golang.org/x/term"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Log in to Garmin Connect and store a session token",
	Long: `Prompt for Garmin Connect credentials, exchange them for a session token
and store the token in the token directory ($GARMINTOKENS, session.token_dir
or ~/.garth). Every export reads this token.`,
	Args: cobra.NoArgs,
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.Flags().String("email", "", "Garmin Connect account email (prompted when empty)")
}

func runAuth(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	timeout, err := cfg.APITimeout()
	if err != nil {
		return err
	}
	dir, err := session.ResolveDir(cfg.Session.TokenDir)
	if err != nil {
		return err
	}

	email, _ := cmd.Flags().GetString("email")
	in := bufio.NewReader(os.Stdin)
	if email == "" {
		email, err = prompt(in, "Email: ")
		if err != nil {
			return fmt.Errorf("read email: %w", err)
		}
	}
	password, err := promptPassword(in, "Password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	auth := session.NewAuthenticator(cfg.Session.SSOURL, cfg.Session.ClientID, &http.Client{Timeout: timeout})
	tok, err := auth.Login(cmd.Context(), session.Credentials{Email: email, Password: password})
	if err != nil {
		return err
	}

	if err := session.SaveToken(dir, tok); err != nil {
		return err
	}

	logger.Info("session token stored", "dir", dir, "expiry", tok.Expiry)
	fmt.Printf("Logged in as %s, token saved to %s\n", email, dir)
	return nil
}

func prompt(in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads without echo from a terminal and falls back to a
// plain line read when stdin is piped.
func promptPassword(in *bufio.Reader, label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(in, label)
	}

	fmt.Fprint(os.Stderr, label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
