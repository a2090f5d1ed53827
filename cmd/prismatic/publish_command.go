package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"prismatic/internal/credentials"
	"prismatic/internal/notifications"
	"prismatic/internal/publisher"
	"prismatic/internal/queue"
	"prismatic/internal/workflow"
)

func newPublishCommand(ctx *commandContext) *cobra.Command {
	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Publishing operations",
	}

	publishCmd.AddCommand(newPublishRunCommand(ctx))

	return publishCmd
}

// newPublishRunCommand performs a single publish pass without the daemon.
// The claim step in the store keeps an overlapping daemon run safe.
func newPublishRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Deliver due scheduled posts once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			return ctx.withStore(func(store *queue.Store) error {
				notifier := notifications.NewService(cfg)
				pipeline := workflow.NewPipeline(cfg, store, nil, notifier)
				registry := publisher.NewRegistry(publisher.NewLinkedIn(publisher.LinkedInConfig{
					BaseURL:        cfg.LinkedIn.BaseURL,
					TimeoutSeconds: cfg.LinkedIn.RequestTimeout,
					CharacterLimit: cfg.LinkedIn.CharacterLimit,
				}))
				worker := workflow.NewWorker(cfg, store, pipeline,
					credentials.NewStoreSource(store), registry, notifier, nil)

				summary, err := worker.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				if summary.Attempted == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing due")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Attempted %d deliveries: %d published, %d failed\n",
					summary.Attempted, summary.Published, summary.Failed)
				return nil
			})
		},
	}
}
