package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/userportal/internal/apiclient"
	"github.com/information-sharing-networks/userportal/internal/config"
	"github.com/information-sharing-networks/userportal/internal/environment"
	"github.com/information-sharing-networks/userportal/internal/session"
)

var errNotLoggedIn = errors.New("not logged in, run `userportal login` first")

type credentialFlags struct {
	username string
	password string
}

func (f *credentialFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.username, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&f.password, "password", "p", "", "account password (read from stdin when omitted)")
}

// credentials returns the flag values, reading the password from the first line of stdin when the flag is not set
func (f *credentialFlags) credentials(in io.Reader) (apiclient.Credentials, error) {
	creds := apiclient.Credentials{Username: f.username, Password: f.password}
	if creds.Password != "" {
		return creds, nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return creds, fmt.Errorf("could not read password from stdin: %w", err)
	}
	creds.Password = strings.TrimRight(line, "\r\n")
	return creds, nil
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	flags := &credentialFlags{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := flags.credentials(cmd.InOrStdin())
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), opts, environment.RuntimeHeadless, config.StoreFile)
			if err != nil {
				return err
			}
			defer a.close()

			sess, err := a.sessions.Login(cmd.Context(), creds)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (user id %s)\n", creds.Username, sess.UserID)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newRegisterCmd(opts *rootOptions) *cobra.Command {
	flags := &credentialFlags{}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := flags.credentials(cmd.InOrStdin())
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), opts, environment.RuntimeHeadless, config.StoreFile)
			if err != nil {
				return err
			}
			defer a.close()

			sess, err := a.sessions.Register(cmd.Context(), creds)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "registered and logged in as %s (user id %s)\n", creds.Username, sess.UserID)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and remove the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, environment.RuntimeHeadless, config.StoreFile)
			if err != nil {
				return err
			}
			defer a.close()

			err = a.sessions.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "local session removed")
			if err != nil {
				return fmt.Errorf("the backend did not confirm the logout: %w", err)
			}
			return nil
		},
	}
}

func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, environment.RuntimeHeadless, config.StoreFile)
			if err != nil {
				return err
			}
			defer a.close()

			sess, err := requireSession(cmd, a)
			if err != nil {
				return err
			}

			user, err := a.api.GetUser(cmd.Context(), sess.Token, sess.UserID, sess.UserID)
			if err != nil {
				return a.handleAPIError(cmd, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "username: %s\n", user.Username)
			fmt.Fprintf(out, "user id:  %s\n", sess.UserID)
			fmt.Fprintf(out, "token:    %s\n", a.sessions.TokenStatus(sess))
			fmt.Fprintf(out, "backend:  %s\n", a.api.BaseURL())
			return nil
		},
	}
}

// requireSession returns the stored session or errNotLoggedIn. Expired tokens are removed.
func requireSession(cmd *cobra.Command, a *app) (*session.Session, error) {
	sess, err := a.sessions.Current(cmd.Context())
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, errNotLoggedIn
	}
	if a.sessions.TokenStatus(sess) == session.TokenExpired {
		if err := a.sessions.Clear(cmd.Context()); err != nil {
			return nil, err
		}
		return nil, errors.New("session expired, please log in again")
	}
	return sess, nil
}

// handleAPIError removes the local session when the backend rejects the token
func (a *app) handleAPIError(cmd *cobra.Command, err error) error {
	if !apiclient.IsUnauthorized(err) {
		return err
	}
	if clearErr := a.sessions.Clear(cmd.Context()); clearErr != nil {
		return errors.Join(err, clearErr)
	}
	return fmt.Errorf("session rejected by the backend, please log in again: %w", err)
}
