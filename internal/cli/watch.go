package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"video-transcriber/internal/config"
	"video-transcriber/internal/domain"
	"video-transcriber/internal/watch"
)

func newWatchCmd(e *env) *cobra.Command {
	var overrides config.Overrides

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Transcribe videos as they appear in a folder",
		Long: `Watch a folder and transcribe each new video file, one at a time, in
the order they arrive. Stop with Ctrl+C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			info, err := os.Stat(dir)
			if err != nil {
				return fmt.Errorf("watch %s: %w", dir, err)
			}
			if !info.IsDir() {
				return fmt.Errorf("watch %s: not a directory", dir)
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			out := cmd.OutOrStdout()
			handler := func(ctx context.Context, path string) error {
				item := domain.WorkItem{Kind: domain.WorkKindFile, Source: path, MediaPath: path}
				return runItems(ctx, e.app, []domain.WorkItem{item}, overrides, out)
			}
			w, err := watch.New(dir, handler, e.logger)
			if err != nil {
				return err
			}
			defer w.Close()

			fmt.Fprintf(out, "Watching %s for new videos\n", dir)
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&overrides.OutputDir, "output", "o", "", "output directory")
	cmd.Flags().StringVarP(&overrides.ModelPath, "model", "m", "", "whisper model file or directory")
	cmd.Flags().StringVarP(&overrides.Language, "language", "l", "", "spoken language or auto")
	return cmd
}
