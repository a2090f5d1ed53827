package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"prismatic/internal/queue"
)

func newScheduleCommand(ctx *commandContext) *cobra.Command {
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Inspect and manage scheduled deliveries",
	}

	scheduleCmd.AddCommand(newScheduleListCommand(ctx))
	scheduleCmd.AddCommand(newScheduleRetryCommand(ctx))
	scheduleCmd.AddCommand(newScheduleCancelCommand(ctx))

	return scheduleCmd
}

func newScheduleListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list <project-id>",
		Short: "List scheduled deliveries for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID(args[0])
			if err != nil {
				return err
			}

			return ctx.withStore(func(store *queue.Store) error {
				scheduled, err := store.ScheduledPostsForProject(cmd.Context(), projectID)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, scheduled)
				}
				if len(scheduled) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No scheduled deliveries")
					return nil
				}

				rows := make([][]string, 0, len(scheduled))
				for _, item := range scheduled {
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						item.Platform,
						string(item.Status),
						item.ScheduledFor.UTC().Format(time.RFC3339),
						strconv.Itoa(item.RetryCount),
						truncateCell(item.LastError, 50),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Platform", "Status", "Scheduled for", "Retries", "Last error"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newScheduleRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [delivery-id...]",
		Short: "Reset failed deliveries back to pending",
		Long: "Resets failed deliveries to pending with a fresh retry budget. " +
			"With no arguments every failed delivery is reset.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			return ctx.withStore(func(store *queue.Store) error {
				count, err := store.RetryFailedScheduled(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d deliveries to pending\n", count)
				return nil
			})
		},
	}
}

func newScheduleCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <project-id>",
		Short: "Cancel all pending deliveries for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseID(args[0])
			if err != nil {
				return err
			}

			return ctx.withStore(func(store *queue.Store) error {
				count, err := store.CancelNonTerminalForProject(cmd.Context(), projectID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled %d deliveries\n", count)
				return nil
			})
		},
	}
}
