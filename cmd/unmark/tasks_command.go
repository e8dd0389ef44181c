package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"unmark/internal/api"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List recent tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := ctx.client(10*time.Second).Tasks(cmd.Context(), limit)
			if err != nil {
				return ctx.wrapClientError(err)
			}
			out := cmd.OutOrStdout()
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Kind", "Status", "Type", "Updated", "Error"},
				taskRows(tasks),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of tasks to show")
	return cmd
}

func taskRows(tasks []api.Task) [][]string {
	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		errText := task.ErrorMessage
		if task.ErrorKind != "" {
			errText = task.ErrorKind + ": " + errText
		}
		rows = append(rows, []string{
			task.ID,
			task.Kind,
			titleCase(task.Status),
			task.WatermarkType,
			formatUpdated(task.UpdatedAt),
			truncate(errText, 48),
		})
	}
	return rows
}

func formatUpdated(value string) string {
	if value == "" {
		return "-"
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return parsed.Local().Format(time.DateTime)
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
