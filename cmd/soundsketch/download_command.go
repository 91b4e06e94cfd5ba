package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "download <job-id> <midi|musicxml> <instrument>",
		Short: "Download one generated artifact",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, fileType, instrument := args[0], strings.ToLower(args[1]), args[2]

			target := strings.TrimSpace(outputPath)
			if target == "" {
				ext := ".mid"
				if fileType == "musicxml" {
					ext = ".musicxml"
				}
				target = fmt.Sprintf("%s_%s%s", jobID, instrument, ext)
			}

			file, err := os.Create(target)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			defer file.Close()

			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			written, err := client.Download(cmd.Context(), jobID, fileType, instrument, file)
			if err != nil {
				os.Remove(target)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", target, written)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination path (default: <job-id>_<instrument>.<ext>)")
	return cmd
}
