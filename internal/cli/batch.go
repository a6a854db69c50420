package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"video-transcriber/internal/bootstrap"
	"video-transcriber/internal/config"
	"video-transcriber/internal/domain"
	"video-transcriber/internal/jobs"
)

func newBatchCmd(e *env) *cobra.Command {
	var runFile string
	var overrides config.Overrides
	var summarize, publish, docx bool

	cmd := &cobra.Command{
		Use:   "batch [paths...]",
		Short: "Transcribe video files and folders",
		Long: `Transcribe the given video files. Folders contribute every video
below them. A YAML run file can list inputs, URLs and per-run settings.

Examples:
  video-transcriber batch ~/Videos/lecture.mp4
  video-transcriber batch ~/Videos --output ~/Transcripts --summarize
  video-transcriber batch --config run.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, fileOverrides, err := e.manifestItems(runFile)
			if err != nil {
				return err
			}
			fromArgs, err := optionalFileItems(args)
			if err != nil {
				return err
			}
			items = append(fromArgs, items...)
			if len(items) == 0 {
				return fmt.Errorf("batch needs paths or --config")
			}

			merged := mergeOverrides(fileOverrides, overrides)
			setFlag(cmd, "summarize", summarize, &merged.Summarize)
			setFlag(cmd, "publish", publish, &merged.Publish)
			setFlag(cmd, "docx", docx, &merged.ExportDocx)
			return runItems(cmd.Context(), e.app, items, merged, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&runFile, "config", "c", "", "YAML run file")
	cmd.Flags().StringVarP(&overrides.OutputDir, "output", "o", "", "output directory")
	cmd.Flags().StringVarP(&overrides.ModelPath, "model", "m", "", "whisper model file or directory")
	cmd.Flags().StringVarP(&overrides.Language, "language", "l", "", "spoken language or auto")
	cmd.Flags().StringVar(&overrides.Provider, "provider", "", "summarizer provider (groq, gemini)")
	cmd.Flags().BoolVar(&summarize, "summarize", false, "summarize transcripts")
	cmd.Flags().BoolVar(&publish, "publish", false, "publish to Notion")
	cmd.Flags().BoolVar(&docx, "docx", false, "also write a .docx transcript")
	return cmd
}

func newInstagramCmd(e *env) *cobra.Command {
	var urlFile string
	var overrides config.Overrides
	var autoDelete, browser, downloadOnly bool

	cmd := &cobra.Command{
		Use:   "instagram [urls...]",
		Short: "Download and transcribe Instagram posts",
		Long: `Download the videos behind Instagram post or reel URLs and transcribe
them. URLs can also come from a text file with one URL per line.

Examples:
  video-transcriber instagram https://www.instagram.com/reel/ABC123/
  video-transcriber instagram --file urls.txt --auto-delete
  video-transcriber instagram --download-only -d ~/Videos/saved https://www.instagram.com/p/XYZ/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			urls := append([]string(nil), args...)
			if urlFile != "" {
				fromFile, err := e.app.LoadURLsFromFile(urlFile)
				if err != nil {
					return err
				}
				urls = append(urls, fromFile...)
			}
			items, err := bootstrap.URLItems(urls)
			if err != nil {
				return err
			}
			setFlag(cmd, "auto-delete", autoDelete, &overrides.AutoDelete)
			setFlag(cmd, "browser", browser, &overrides.UseBrowser)
			setFlag(cmd, "download-only", downloadOnly, &overrides.DownloadOnly)
			return runItems(cmd.Context(), e.app, items, overrides, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&urlFile, "file", "f", "", "text file with one URL per line")
	cmd.Flags().StringVarP(&overrides.OutputDir, "output", "o", "", "output directory")
	cmd.Flags().StringVarP(&overrides.DownloadDir, "download-dir", "d", "", "where downloaded videos go")
	cmd.Flags().BoolVar(&autoDelete, "auto-delete", false, "delete downloaded videos after transcription")
	cmd.Flags().BoolVar(&browser, "browser", false, "fall back to a headless browser for extraction")
	cmd.Flags().BoolVar(&downloadOnly, "download-only", false, "save the videos without transcribing them")
	return cmd
}

// manifestItems loads the run file, if any.
func (e *env) manifestItems(path string) ([]domain.WorkItem, config.Overrides, error) {
	if path == "" {
		return nil, config.Overrides{}, nil
	}
	rf, err := config.LoadRunFile(path)
	if err != nil {
		return nil, config.Overrides{}, err
	}

	items, err := optionalFileItems(rf.Inputs)
	if err != nil {
		return nil, config.Overrides{}, err
	}
	urls := rf.URLs
	if rf.URLFile != "" {
		fromFile, err := e.app.LoadURLsFromFile(rf.URLFile)
		if err != nil {
			return nil, config.Overrides{}, err
		}
		urls = append(urls, fromFile...)
	}
	if len(urls) > 0 {
		urlItems, err := bootstrap.URLItems(urls)
		if err != nil {
			return nil, config.Overrides{}, err
		}
		items = append(items, urlItems...)
	}
	return items, rf.Settings, nil
}

// optionalFileItems is FileItems that allows an empty path list.
func optionalFileItems(paths []string) ([]domain.WorkItem, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	return bootstrap.FileItems(paths)
}

// mergeOverrides lays flag values over run file values.
func mergeOverrides(base, top config.Overrides) config.Overrides {
	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	str(&base.OutputDir, top.OutputDir)
	str(&base.ModelPath, top.ModelPath)
	str(&base.DownloadDir, top.DownloadDir)
	str(&base.Language, top.Language)
	str(&base.Provider, top.Provider)
	str(&base.Model, top.Model)
	return base
}

// setFlag records a bool flag only when it was given explicitly.
func setFlag(cmd *cobra.Command, name string, value bool, dst **bool) {
	if cmd.Flags().Changed(name) {
		v := value
		*dst = &v
	}
}

// runItems runs a batch in the foreground and prints its events.
func runItems(parent context.Context, app *bootstrap.App, items []domain.WorkItem, overrides config.Overrides, out io.Writer) error {
	ctx, stop := signalContext(parent)
	defer stop()

	var since int64
	if backlog := app.JobEvents(0); len(backlog) > 0 {
		since = backlog[len(backlog)-1].Seq
	}

	printCtx, stopPrint := context.WithCancel(context.Background())
	defer stopPrint()
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		_ = app.Events().Follow(printCtx, since, func(event jobs.Event) {
			printEvent(out, event)
			if event.Type == jobs.EventTypeResult {
				stopPrint()
			}
		})
	}()

	err := app.RunBatchWithOverrides(ctx, items, overrides)
	if !hasResult(app.JobEvents(since)) {
		// Rejected before start; nothing more will be published.
		stopPrint()
	}
	<-printed
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func hasResult(events []jobs.Event) bool {
	for _, event := range events {
		if event.Type == jobs.EventTypeResult {
			return true
		}
	}
	return false
}

func printEvent(out io.Writer, event jobs.Event) {
	switch event.Type {
	case jobs.EventTypeLog:
		fmt.Fprintln(out, event.Message)
	case jobs.EventTypeStatus:
		fmt.Fprintf(out, "» %s\n", event.Message)
	case jobs.EventTypeProgress:
		fmt.Fprintf(out, "[%d/%d] %3.0f%%\n", event.Processed, event.Total, event.Fraction*100)
	case jobs.EventTypeResult:
		fmt.Fprintf(out, "Batch %s: %d of %d items processed\n", event.Status, event.Processed, event.Total)
	case jobs.EventTypeError:
		fmt.Fprintf(out, "error: %s\n", event.Message)
	}
}
