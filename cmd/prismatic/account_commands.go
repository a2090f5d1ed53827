package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"prismatic/internal/queue"
)

func newAccountCommand(ctx *commandContext) *cobra.Command {
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Manage platform account credentials",
	}

	accountCmd.AddCommand(newAccountAddCommand(ctx))
	accountCmd.AddCommand(newAccountListCommand(ctx))
	accountCmd.AddCommand(newAccountRemoveCommand(ctx))

	return accountCmd
}

func newAccountAddCommand(ctx *commandContext) *cobra.Command {
	var tokenFlag string
	var expiresFlag string

	cmd := &cobra.Command{
		Use:   "add <account> <platform>",
		Short: "Store or rotate an access token for an account",
		Long: "Stores the access token for an account on a platform. Adding " +
			"a token for an existing account replaces it and clears the " +
			"cached member identity.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			account := strings.TrimSpace(args[0])
			platform := strings.TrimSpace(args[1])
			token := strings.TrimSpace(tokenFlag)
			if token == "" {
				return fmt.Errorf("--token is required")
			}

			var expiresAt *time.Time
			if strings.TrimSpace(expiresFlag) != "" {
				parsed, err := time.Parse(time.RFC3339, expiresFlag)
				if err != nil {
					return fmt.Errorf("parse --expires: %w", err)
				}
				expiresAt = &parsed
			}

			return ctx.withStore(func(store *queue.Store) error {
				if err := store.UpsertAccount(cmd.Context(), account, platform, token, expiresAt); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored credentials for %s on %s\n", account, platform)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tokenFlag, "token", "", "Access token for the platform API")
	cmd.Flags().StringVar(&expiresFlag, "expires", "", "Token expiry (RFC 3339, optional)")
	return cmd
}

func newAccountListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				accounts, err := store.ListAccounts(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, accounts)
				}
				if len(accounts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No accounts")
					return nil
				}

				rows := make([][]string, 0, len(accounts))
				for _, account := range accounts {
					expires := "never"
					if account.TokenExpiresAt != nil {
						expires = account.TokenExpiresAt.UTC().Format(time.RFC3339)
					}
					rows = append(rows, []string{
						account.Account,
						account.Platform,
						yesNo(account.MemberIdentity != ""),
						expires,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Account", "Platform", "Identity cached", "Token expires"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newAccountRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <account> <platform>",
		Short: "Remove stored credentials",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				if err := store.RemoveAccount(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed credentials for %s on %s\n", args[0], args[1])
				return nil
			})
		},
	}
}
