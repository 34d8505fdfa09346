package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"allthatstax/internal/api"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit    int
		jsonMode bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent fetch runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := ctx.openHistory()
			if err != nil {
				return err
			}
			defer runs.Close()

			recent, err := runs.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			resp := api.FromHistoryRuns(recent)
			if jsonMode {
				return writeJSON(cmd, resp)
			}

			out := cmd.OutOrStdout()
			if len(recent) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(recent))
			for _, run := range recent {
				rows = append(rows, []string{
					run.JobID,
					run.Status,
					run.StartedAt.Local().Format("2006-01-02 15:04"),
					run.Duration().Round(time.Second).String(),
					fmt.Sprintf("%d/%d", run.Processed, run.Total),
					strconv.Itoa(run.Updated),
					strconv.Itoa(run.ImagesDownloaded),
					strconv.Itoa(len(run.Errors)),
				})
			}
			headers := []string{"Job", "Status", "Started", "Duration", "Processed", "Updated", "Images", "Errors"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight}
			fmt.Fprintln(out, renderTable(headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Output as JSON")
	return cmd
}
