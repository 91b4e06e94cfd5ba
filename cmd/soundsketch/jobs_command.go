package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"soundsketch/internal/api"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent conversion jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			listing, err := client.Jobs(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if listing.Count == 0 {
				fmt.Fprintln(out, "No jobs found.")
				return nil
			}
			fmt.Fprintln(out, renderJobsTable(listing.Jobs, shouldColorize(out)))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of jobs to list (default: server limit)")
	return cmd
}

func renderJobsTable(records []api.JobRecord, colorize bool) string {
	headers := []string{"Job ID", "File", "Status", "Created", "Completed", "Parts", "Errors"}
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{
			record.JobID,
			record.Filename,
			colorizeStatus(record.Status, colorize),
			formatTimestamp(record.CreatedAt),
			formatOptionalTimestamp(record.CompletedAt),
			formatInstruments(record.MIDIFiles),
			fmt.Sprintf("%d", len(record.Errors)),
		})
	}
	return renderTable(headers, rows, []columnAlignment{
		alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight,
	})
}
