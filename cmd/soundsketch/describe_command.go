package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"soundsketch/internal/analysis"
	"soundsketch/internal/services/llm"
)

func newDescribeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <job-id>",
		Short: "Generate a written description of a job's audio features",
		Long: "Fetches the extracted feature document for a job and asks the " +
			"configured language model to describe the track. Requires an " +
			"api_key in the [llm] config section.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}

			payload, err := client.Analysis(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			features, err := analysis.Decode(payload)
			if err != nil {
				return fmt.Errorf("decode analysis: %w", err)
			}

			description, err := llm.NewClient(cfg).Describe(cmd.Context(), features)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, description.Summary)
			if description.Mood != "" {
				fmt.Fprintf(out, "\nMood: %s\n", description.Mood)
			}
			if len(description.Highlights) > 0 {
				fmt.Fprintln(out, "\nHighlights:")
				for _, highlight := range description.Highlights {
					fmt.Fprintf(out, "  - %s\n", highlight)
				}
			}
			return nil
		},
	}
}
