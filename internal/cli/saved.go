package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"video-transcriber/internal/config"
)

func newSavedCmd(e *env) *cobra.Command {
	var (
		limit                    int
		session                  string
		check                    bool
		overrides                config.Overrides
		autoDelete, downloadOnly bool
	)

	cmd := &cobra.Command{
		Use:   "saved",
		Short: "Download and transcribe your saved Instagram posts",
		Long: `Fetch the video posts saved by your Instagram account and run them as a
batch. Sign in to Instagram in a browser and copy the value of its
"sessionid" cookie; it is stored in instagram_config.txt next to the other
credentials.

Examples:
  video-transcriber saved --session <sessionid> --check
  video-transcriber saved --limit 20 --auto-delete
  video-transcriber saved --download-only -d ~/Videos/saved`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return errors.New("--limit must not be negative")
			}
			if session != "" {
				if err := e.app.SaveInstagramSession(session); err != nil {
					return err
				}
			}
			if check {
				username, err := e.app.TestInstagram()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", username)
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Fetching list of saved posts...")
			items, err := e.app.SavedPostItems(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %d saved videos\n", len(items))

			setFlag(cmd, "auto-delete", autoDelete, &overrides.AutoDelete)
			setFlag(cmd, "download-only", downloadOnly, &overrides.DownloadOnly)
			return runItems(cmd.Context(), e.app, items, overrides, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "most saved videos to take (0 for all)")
	cmd.Flags().StringVar(&session, "session", "", "save this sessionid cookie before running")
	cmd.Flags().BoolVar(&check, "check", false, "only verify the saved session")
	cmd.Flags().StringVarP(&overrides.OutputDir, "output", "o", "", "output directory")
	cmd.Flags().StringVarP(&overrides.DownloadDir, "download-dir", "d", "", "where downloaded videos go")
	cmd.Flags().BoolVar(&autoDelete, "auto-delete", false, "delete downloaded videos after transcription")
	cmd.Flags().BoolVar(&downloadOnly, "download-only", false, "save the videos without transcribing them")
	return cmd
}
