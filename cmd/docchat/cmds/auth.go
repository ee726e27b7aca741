package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/go-go-golems/docchat/pkg/chatrunner"
	"github.com/go-go-golems/docchat/pkg/client"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	input "github.com/tcnksm/go-input"
	"golang.org/x/term"
)

type authFunc func(c *client.Client, ctx context.Context, username, password string) (string, error)

func NewLoginCommand() *cobra.Command {
	return newAuthCommand("login", "Log in and remember the session", (*client.Client).Login)
}

func NewRegisterCommand() *cobra.Command {
	return newAuthCommand("register", "Create an account and log in", (*client.Client).Register)
}

func newAuthCommand(use, short string, do authFunc) *cobra.Command {
	var (
		username string
		plain    bool
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := setup(false)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			interactive := !plain && isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
			var password string
			if interactive {
				username, password, err = credentialsForm(ctx, use, username)
			} else {
				username, password, err = promptCredentials(cmd.InOrStdin(), cmd.ErrOrStderr(), username)
			}
			if err != nil {
				return err
			}

			c, err := chatrunner.NewClient(s)
			if err != nil {
				return err
			}
			msg, err := do(c, ctx, username, password)
			if err != nil {
				var apiErr *client.APIError
				if errors.As(err, &apiErr) && apiErr.Message != "" {
					return errors.Errorf("%s failed: %s", use, apiErr.Message)
				}
				return errors.Wrapf(err, "%s failed", use)
			}
			if err := client.SaveSessionFile(s.Session.File, c.Save(username)); err != nil {
				return err
			}
			log.Debug().Str("component", "auth").Str("session_file", s.Session.File).Msg("session saved")

			if msg == "" {
				msg = "Logged in"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s as %s\n", strings.TrimRight(msg, "."), username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Account name")
	cmd.Flags().BoolVar(&plain, "plain", false, "Read credentials line by line instead of showing a form")
	return cmd
}

func notEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("required")
	}
	return nil
}

func credentialsForm(ctx context.Context, title, username string) (string, string, error) {
	var password string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Value(&username).
				Validate(notEmpty),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&password).
				Validate(notEmpty),
		).Title("docchat " + title),
	).WithTheme(huh.ThemeCharm())
	if err := form.RunWithContext(ctx); err != nil {
		return "", "", errors.Wrap(err, "credentials form")
	}
	return strings.TrimSpace(username), password, nil
}

// promptCredentials asks on plain streams. The password is read without
// echo when in is a terminal.
func promptCredentials(in io.Reader, out io.Writer, username string) (string, string, error) {
	ui := &input.UI{Writer: out, Reader: in}
	opts := &input.Options{Required: true, HideOrder: true}

	var err error
	if strings.TrimSpace(username) == "" {
		username, err = ui.Ask("Username", opts)
		if err != nil {
			return "", "", errors.Wrap(err, "read username")
		}
	}

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(out, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(out)
		if err != nil {
			return "", "", errors.Wrap(err, "read password")
		}
		if len(b) == 0 {
			return "", "", errors.New("password is required")
		}
		return strings.TrimSpace(username), string(b), nil
	}

	password, err := ui.Ask("Password", opts)
	if err != nil {
		return "", "", errors.Wrap(err, "read password")
	}
	return strings.TrimSpace(username), password, nil
}

func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the saved login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := setup(false)
			if err != nil {
				return err
			}

			c, err := chatrunner.NewClient(s)
			if err != nil {
				return err
			}
			if err := c.Logout(cmd.Context()); err != nil {
				// the local session is dropped regardless
				log.Warn().Err(err).Str("component", "auth").Msg("server logout failed")
			}
			if err := client.RemoveSessionFile(s.Session.File); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}
