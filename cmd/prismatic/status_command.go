package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"prismatic/internal/lifecycle"
	"prismatic/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pipeline and delivery status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				projectStats, err := store.ProjectStats(cmd.Context())
				if err != nil {
					return err
				}
				scheduleStats, err := store.ScheduleStats(cmd.Context())
				if err != nil {
					return err
				}
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}

				if jsonOut {
					return writeJSON(cmd, map[string]any{
						"projects":   projectStats,
						"deliveries": scheduleStats,
						"health":     health,
					})
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Projects", colorize) {
					fmt.Fprintln(out, line)
				}
				if health.Projects == 0 {
					fmt.Fprintln(out, "  No projects")
				} else {
					for _, stage := range lifecycle.AllStages() {
						count := projectStats[stage]
						if count == 0 {
							continue
						}
						fmt.Fprintf(out, "  %-20s %d\n", stage, count)
					}
				}

				for _, line := range renderSectionHeader("Deliveries", colorize) {
					fmt.Fprintln(out, line)
				}
				if len(scheduleStats) == 0 {
					fmt.Fprintln(out, "  No scheduled deliveries")
				} else {
					rows := make([][]string, 0, len(scheduleStats))
					for status, count := range scheduleStats {
						rows = append(rows, []string{string(status), strconv.Itoa(count)})
					}
					sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
					fmt.Fprintln(out, renderTable(
						[]string{"Status", "Count"},
						rows,
						[]columnAlignment{alignLeft, alignRight},
					))
				}

				kind := statusOK
				message := fmt.Sprintf("%d active projects, %d due deliveries", health.ActiveProjects, health.PendingDue)
				if health.FailedDeliveries > 0 {
					kind = statusWarn
					message = fmt.Sprintf("%s, %d failed deliveries", message, health.FailedDeliveries)
				}
				fmt.Fprintln(out, renderStatusLine("Queue", kind, message, colorize))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

type statusKind int

const (
	statusOK statusKind = iota
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if message != "" {
		statusText = fmt.Sprintf("%s %s", statusText, message)
	}
	base := fmt.Sprintf("  %-12s %s", label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "OK"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	default:
		return ansiGreen
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", title)
	if colorize {
		line = ansiBlue + line + ansiReset
	}
	return []string{line}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
