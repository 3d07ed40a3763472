package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ideajournal/internal/authpw"
	"ideajournal/internal/credentials"
	"ideajournal/internal/session"
)

var revealReason string

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Inspect registered users",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return cfg.Validate()
	},
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered users",
	RunE: func(cmd *cobra.Command, args []string) error {
		var cleanup closers
		defer cleanup.close()

		creds, _, err := openCredentials(cmd.Context(), cfg, logger, &cleanup)
		if err != nil {
			return err
		}
		svc := authpw.NewService(creds, nil, session.NewMemoryStore(), authpw.Options{
			AdminUsername: cfg.AdminUsername,
			AdminPassword: cfg.AdminPassword,
		})
		users, err := svc.ListUsers(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USERNAME\tCREATED")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\n", u.Username, u.CreatedAt)
		}
		return w.Flush()
	},
}

var usersRevealCmd = &cobra.Command{
	Use:   "reveal <username>",
	Short: "Decrypt a user's stored password (audited)",
	Long: `Decrypts the reversible copy of a user's password with the master key.
Every use is written to the audit log together with --reason.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if revealReason == "" {
			return fmt.Errorf("--reason is required")
		}
		var cleanup closers
		defer cleanup.close()

		creds, _, err := openCredentials(cmd.Context(), cfg, logger, &cleanup)
		if err != nil {
			return err
		}
		users, err := creds.Load(cmd.Context())
		if err != nil {
			return err
		}
		user, ok := users[args[0]]
		if !ok {
			return fmt.Errorf("user %q not found", args[0])
		}

		vault, err := credentials.NewPasswordVault(cfg.MasterKey, logger.Named("audit"))
		if err != nil {
			return err
		}
		password, err := vault.Reveal(args[0], user, revealReason)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), password)
		return nil
	},
}

func init() {
	usersRevealCmd.Flags().StringVar(&revealReason, "reason", "", "why the password is being revealed (logged)")

	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersRevealCmd)
}

