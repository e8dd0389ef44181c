package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"unmark/internal/progress"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [task-id]",
		Short: "Show daemon status, or the progress of one task",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			client := ctx.client(10 * time.Second)

			if len(args) == 1 {
				rec, err := client.Progress(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return ctx.wrapClientError(err)
				}
				kind := taskStatusKind(progress.Status(rec.Status))
				fmt.Fprintln(out, renderStatusLine("Task", statusInfo, rec.TaskID, colorize))
				fmt.Fprintln(out, renderStatusLine("Status", kind, titleCase(rec.Status), colorize))
				if rec.Progress >= 0 {
					fmt.Fprintln(out, renderStatusLine("Progress", kind, fmt.Sprintf("%.0f%%", rec.Progress*100), colorize))
				}
				if !rec.Timestamp.IsZero() {
					fmt.Fprintln(out, renderStatusLine("Updated", statusInfo, rec.Timestamp.Local().Format(time.DateTime), colorize))
				}
				// progress may outlive the row when redis holds it
				if task, err := client.Task(cmd.Context(), rec.TaskID); err == nil {
					fmt.Fprintln(out, renderStatusLine("Kind", statusInfo, task.Kind, colorize))
					if task.ErrorMessage != "" {
						fmt.Fprintln(out, renderStatusLine("Error", statusError, task.ErrorMessage, colorize))
					}
				}
				return nil
			}

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(out, line)
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				fmt.Fprintln(out, renderStatusLine("Daemon", statusError, "Not running", colorize))
				return nil
			}
			fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
			fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
			fmt.Fprintln(out, renderStatusLine("Progress backend", statusInfo, status.Progress, colorize))
			fmt.Fprintln(out, renderStatusLine("Encoder", statusInfo, status.Encoder, colorize))

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Tasks", colorize) {
				fmt.Fprintln(out, line)
			}
			statuses := make([]string, 0, len(status.TaskCounts))
			for name := range status.TaskCounts {
				statuses = append(statuses, name)
			}
			sort.Strings(statuses)
			if len(statuses) == 0 {
				fmt.Fprintln(out, renderStatusLine("Tasks", statusInfo, "none", colorize))
			}
			for _, name := range statuses {
				fmt.Fprintln(out, renderStatusLine(titleCase(name), taskStatusKind(progress.Status(name)),
					fmt.Sprintf("%d", status.TaskCounts[name]), colorize))
			}

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, dep := range status.Dependencies {
				kind, message := statusOK, dep.Command
				if !dep.Available {
					kind, message = statusError, dep.Detail
					if dep.Optional {
						kind = statusWarn
					}
				}
				fmt.Fprintln(out, renderStatusLine(dep.Name, kind, message, colorize))
			}
			return nil
		},
	}
}

func taskStatusKind(status progress.Status) statusKind {
	switch status {
	case progress.StatusCompleted:
		return statusOK
	case progress.StatusFailed:
		return statusError
	case progress.StatusNotFound:
		return statusWarn
	default:
		return statusInfo
	}
}

func titleCase(value string) string {
	value = strings.ReplaceAll(strings.TrimSpace(value), "_", " ")
	return cases.Title(language.English).String(value)
}
