package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <audio-file>",
		Short: "Upload an audio file for conversion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(args[0])
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("stat audio file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%q is a directory", path)
			}

			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			response, err := client.Submit(cmd.Context(), path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Submitted %s\n", filepath.Base(path))
			fmt.Fprintf(out, "Job:    %s\n", response.JobID)
			fmt.Fprintf(out, "Status: %s\n", colorizeStatus(response.Status, shouldColorize(out)))
			return nil
		},
	}
}
