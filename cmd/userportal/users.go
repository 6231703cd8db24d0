package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/information-sharing-networks/userportal/internal/apiclient"
	"github.com/information-sharing-networks/userportal/internal/config"
	"github.com/information-sharing-networks/userportal/internal/environment"
	"github.com/information-sharing-networks/userportal/internal/formatters"
)

func newUsersCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List, show and update users",
	}
	cmd.AddCommand(
		newUsersListCmd(opts),
		newUsersGetCmd(opts),
		newUsersUpdateCmd(opts),
	)
	return cmd
}

func newUsersListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all users",
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

			users, err := a.api.ListUsers(cmd.Context(), sess.Token, sess.UserID)
			if err != nil {
				return a.handleAPIError(cmd, err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUSERNAME\tNAME")
			for _, u := range users {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", u.ID, u.Username, u.Name)
			}
			return tw.Flush()
		},
	}
}

func newUsersGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a user profile",
		Args:  cobra.ExactArgs(1),
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

			user, err := a.api.GetUser(cmd.Context(), sess.Token, sess.UserID, args[0])
			if err != nil {
				return a.handleAPIError(cmd, err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "Username\t%s\n", user.Username)
			fmt.Fprintf(tw, "Status\t%s\n", formatters.FormatStatus(user.Status))
			fmt.Fprintf(tw, "Creation Date\t%s\n", formatters.FormatDate(user.CreatedAt))
			fmt.Fprintf(tw, "Birthdate\t%s\n", formatters.FormatDate(user.BirthDate))
			return tw.Flush()
		},
	}
}

func newUsersUpdateCmd(opts *rootOptions) *cobra.Command {
	var username, birthDate string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update your own profile",
		Long:  "Update your own username and/or birth date (YYYY-MM-DD). Only the flags given are changed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var update apiclient.UserUpdate
			if cmd.Flags().Changed("username") {
				update.Username = &username
			}
			if cmd.Flags().Changed("birth-date") {
				update.BirthDate = &birthDate
			}
			if update.IsEmpty() {
				fmt.Fprintln(cmd.OutOrStdout(), "No changes detected.")
				return nil
			}

			a, err := newApp(cmd.Context(), opts, environment.RuntimeHeadless, config.StoreFile)
			if err != nil {
				return err
			}
			defer a.close()

			sess, err := requireSession(cmd, a)
			if err != nil {
				return err
			}

			if err := a.api.UpdateUser(cmd.Context(), sess.Token, sess.UserID, update); err != nil {
				return a.handleAPIError(cmd, err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Profile updated successfully!")
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "new username")
	cmd.Flags().StringVar(&birthDate, "birth-date", "", "new birth date, YYYY-MM-DD")
	return cmd
}
