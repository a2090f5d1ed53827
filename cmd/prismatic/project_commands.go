package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"prismatic/internal/lifecycle"
	"prismatic/internal/notifications"
	"prismatic/internal/queue"
	"prismatic/internal/textutil"
	"prismatic/internal/workflow"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Create and manage content projects",
	}

	projectCmd.AddCommand(newProjectCreateCommand(ctx))
	projectCmd.AddCommand(newProjectListCommand(ctx))
	projectCmd.AddCommand(newProjectShowCommand(ctx))
	projectCmd.AddCommand(newProjectFireCommand(ctx))
	projectCmd.AddCommand(newProjectTriggersCommand(ctx))
	projectCmd.AddCommand(newProjectRemoveCommand(ctx))

	return projectCmd
}

func newProjectCreateCommand(ctx *commandContext) *cobra.Command {
	var (
		transcriptPath      string
		platforms           []string
		owner               string
		preferredTime       string
		autoApproveInsights bool
		autoApprovePosts    bool
		submit              bool
		jsonOut             bool
	)

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a project from a transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(args[0])
			if title == "" {
				return fmt.Errorf("title is required")
			}
			transcript, err := readTranscript(cmd, transcriptPath)
			if err != nil {
				return err
			}

			return ctx.withStore(func(store *queue.Store) error {
				project, err := store.NewProject(cmd.Context(), &queue.Project{
					Title:                title,
					Transcript:           transcript,
					TargetPlatforms:      platforms,
					OwnerAccount:         strings.TrimSpace(owner),
					PreferredPostingTime: strings.TrimSpace(preferredTime),
					AutoApproveInsights:  autoApproveInsights,
					AutoApprovePosts:     autoApprovePosts,
				})
				if err != nil {
					return err
				}

				if submit {
					pipeline := newCLIPipeline(ctx, store)
					if _, err := pipeline.Fire(cmd.Context(), project.ID, lifecycle.TriggerStartProcessing); err != nil {
						return err
					}
					project, err = store.GetProject(cmd.Context(), project.ID)
					if err != nil {
						return err
					}
				}

				if jsonOut {
					return writeJSON(cmd, project)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created project %d (%s) in stage %s\n", project.ID, project.Title, project.Stage)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&transcriptPath, "transcript", "t", "", "Transcript file path (reads stdin when omitted)")
	cmd.Flags().StringSliceVar(&platforms, "platforms", []string{"linkedin"}, "Target platforms for generated posts")
	cmd.Flags().StringVar(&owner, "owner", "", "Account that owns the published posts")
	cmd.Flags().StringVar(&preferredTime, "preferred-time", "", "Preferred posting time (HH:MM, UTC)")
	cmd.Flags().BoolVar(&autoApproveInsights, "auto-approve-insights", false, "Skip the insight review gate")
	cmd.Flags().BoolVar(&autoApprovePosts, "auto-approve-posts", false, "Skip the post review gate")
	cmd.Flags().BoolVar(&submit, "submit", false, "Immediately submit the project for processing")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newProjectListCommand(ctx *commandContext) *cobra.Command {
	var stageFilters []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			var stages []lifecycle.Stage
			for _, raw := range stageFilters {
				stage, ok := lifecycle.ParseStage(raw)
				if !ok {
					return fmt.Errorf("unknown stage %q", raw)
				}
				stages = append(stages, stage)
			}

			return ctx.withStore(func(store *queue.Store) error {
				projects, err := store.ListProjects(cmd.Context(), stages...)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, projects)
				}
				if len(projects) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No projects")
					return nil
				}

				rows := make([][]string, 0, len(projects))
				for _, p := range projects {
					rows = append(rows, []string{
						strconv.FormatInt(p.ID, 10),
						p.Title,
						string(p.Stage),
						fmt.Sprintf("%d%%", p.Progress),
						p.UpdatedAt.UTC().Format(time.RFC3339),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Title", "Stage", "Progress", "Updated"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&stageFilters, "stage", nil, "Filter by stage (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newProjectShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a project with its insights and posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return ctx.withStore(func(store *queue.Store) error {
				project, err := store.GetProject(cmd.Context(), id)
				if err != nil {
					return err
				}
				if project == nil {
					return fmt.Errorf("project %d not found", id)
				}
				insights, err := store.InsightsForProject(cmd.Context(), id)
				if err != nil {
					return err
				}
				posts, err := store.PostsForProject(cmd.Context(), id)
				if err != nil {
					return err
				}

				if jsonOut {
					return writeJSON(cmd, map[string]any{
						"project":  project,
						"insights": insights,
						"posts":    posts,
					})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Project %d: %s\n", project.ID, project.Title)
				fmt.Fprintf(out, "  Stage:     %s (%d%%)\n", project.Stage, project.Progress)
				fmt.Fprintf(out, "  Platforms: %s\n", strings.Join(project.TargetPlatforms, ", "))
				fmt.Fprintf(out, "  Owner:     %s\n", project.OwnerAccount)
				fmt.Fprintf(out, "  Auto-approve: insights=%s posts=%s\n",
					yesNo(project.AutoApproveInsights), yesNo(project.AutoApprovePosts))
				if project.ErrorMessage != "" {
					fmt.Fprintf(out, "  Last error: %s\n", project.ErrorMessage)
				}

				if len(insights) > 0 {
					rows := make([][]string, 0, len(insights))
					for _, insight := range insights {
						rows = append(rows, []string{
							strconv.FormatInt(insight.ID, 10),
							string(insight.Status),
							insight.Category,
							fmt.Sprintf("%.2f", insight.Score),
							truncateCell(insight.Summary, 60),
						})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"Insight", "Status", "Category", "Score", "Summary"},
						rows,
						[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
					))
				}

				if len(posts) > 0 {
					rows := make([][]string, 0, len(posts))
					for _, post := range posts {
						rows = append(rows, []string{
							strconv.FormatInt(post.ID, 10),
							post.Platform,
							string(post.Status),
							truncateCell(post.Content, 60),
						})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"Post", "Platform", "Status", "Content"},
						rows,
						[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
					))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newProjectFireCommand(ctx *commandContext) *cobra.Command {
	var atFlag string
	var message string

	cmd := &cobra.Command{
		Use:   "fire <id> <trigger>",
		Short: "Fire a lifecycle trigger on a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			trigger, ok := lifecycle.ParseTrigger(args[1])
			if !ok {
				return fmt.Errorf("unknown trigger %q (see `prismatic project triggers %d`)", args[1], id)
			}

			var opts []workflow.FireOption
			if strings.TrimSpace(atFlag) != "" {
				at, err := time.Parse(time.RFC3339, atFlag)
				if err != nil {
					return fmt.Errorf("parse --at: %w", err)
				}
				opts = append(opts, workflow.WithScheduleTime(at))
			}
			if strings.TrimSpace(message) != "" {
				opts = append(opts, workflow.WithErrorMessage(message))
			}

			return ctx.withStore(func(store *queue.Store) error {
				pipeline := newCLIPipeline(ctx, store)
				dest, err := pipeline.Fire(cmd.Context(), id, trigger, opts...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Project %d is now %s\n", id, dest)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&atFlag, "at", "", "Delivery time for schedule_posts (RFC 3339)")
	cmd.Flags().StringVar(&message, "message", "", "Failure reason for failure triggers")
	return cmd
}

func newProjectTriggersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "triggers <id>",
		Short: "List triggers permitted in the project's current stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return ctx.withStore(func(store *queue.Store) error {
				project, err := store.GetProject(cmd.Context(), id)
				if err != nil {
					return err
				}
				if project == nil {
					return fmt.Errorf("project %d not found", id)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Project %d is %s. Permitted triggers:\n", id, project.Stage)
				for _, trigger := range lifecycle.PermittedTriggers(project.Stage) {
					next, _ := lifecycle.Next(project.Stage, trigger)
					fmt.Fprintf(out, "  %-22s -> %s\n", trigger, next)
				}
				return nil
			})
		},
	}
}

func newProjectRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a project and all of its content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				removed, err := store.RemoveProject(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("project %d not found", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed project %d\n", id)
				return nil
			})
		},
	}
}

func newCLIPipeline(ctx *commandContext, store *queue.Store) *workflow.Pipeline {
	cfg, _ := ctx.ensureConfig()
	return workflow.NewPipeline(cfg, store, nil, notifications.NewService(cfg))
}

func readTranscript(cmd *cobra.Command, path string) (string, error) {
	path = strings.TrimSpace(path)
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read transcript from stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read transcript: %w", err)
		}
	}
	transcript := strings.TrimSpace(string(data))
	if transcript == "" {
		return "", fmt.Errorf("transcript is empty")
	}
	return transcript, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func truncateCell(value string, max int) string {
	value = textutil.CollapseWhitespace(value)
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max-1]) + "…"
}
