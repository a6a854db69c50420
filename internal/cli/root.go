// Package cli provides the command-line interface: the desktop shell by
// default, the browser front end with --web, and headless subcommands.
package cli

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"video-transcriber/internal/bootstrap"
	"video-transcriber/internal/config"
	"video-transcriber/internal/web"
)

// Version is set at build time.
var Version = "0.1.0"

// env is the state shared by one command invocation.
type env struct {
	assets fs.FS

	logLevel string
	useWeb   bool
	addr     string

	app      *bootstrap.App
	logger   *slog.Logger
	closeLog func() error
}

// Execute runs the root command. assets holds the embedded front end with
// index.html under frontend/.
func Execute(assets fs.FS) error {
	root, e := newRootCmd(assets)
	defer e.close()
	return root.Execute()
}

// newRootCmd builds the command tree. The caller closes the env once the
// command returns, whether or not it failed.
func newRootCmd(assets fs.FS) (*cobra.Command, *env) {
	e := &env{assets: assets}

	root := &cobra.Command{
		Use:   "video-transcriber",
		Short: "Transcribe local and Instagram videos with whisper.cpp",
		Long: `Video Transcriber extracts audio with ffmpeg, transcribes it with
whisper.cpp and can summarize the text and publish it to Notion.

Without a subcommand the desktop window opens. Use --web to serve the
same interface to a browser instead.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			return e.open()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if e.useWeb {
				return e.serveWeb(cmd.Context())
			}
			return e.app.Run()
		},
	}

	root.PersistentFlags().StringVar(&e.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.Flags().BoolVar(&e.useWeb, "web", false, "serve the browser front end instead of opening a window")
	root.Flags().StringVar(&e.addr, "addr", web.DefaultAddr, "listen address for --web")

	root.AddCommand(newBatchCmd(e))
	root.AddCommand(newInstagramCmd(e))
	root.AddCommand(newSavedCmd(e))
	root.AddCommand(newWatchCmd(e))
	root.AddCommand(newHistoryCmd(e))
	root.AddCommand(newDiagnoseCmd(e))
	return root, e
}

// open sets up logging and the application service.
func (e *env) open() error {
	dir := config.Dir()
	level := e.logLevel
	if level == "" {
		if settings, err := config.NewJSONStore(filepath.Join(dir, "settings.json")).Load(); err == nil {
			level = settings.LogLevel
		}
	}
	e.logger, e.closeLog = config.SetupLogger(filepath.Join(dir, "app.log"), config.ParseLogLevel(level))
	slog.SetDefault(e.logger)

	app, err := bootstrap.NewWithAssets(e.assets, e.logger)
	if err != nil {
		return fmt.Errorf("bootstrap app: %w", err)
	}
	e.app = app
	return nil
}

func (e *env) close() {
	if e.app != nil {
		if err := e.app.Close(); err != nil {
			e.logger.Warn("close app", "error", err)
		}
		e.app = nil
	}
	if e.closeLog != nil {
		_ = e.closeLog()
		e.closeLog = nil
	}
}

func (e *env) serveWeb(parent context.Context) error {
	ctx, stop := signalContext(parent)
	defer stop()

	static := fs.FS(os.DirFS("frontend"))
	if e.assets != nil {
		sub, err := fs.Sub(e.assets, "frontend")
		if err != nil {
			return fmt.Errorf("load front end assets: %w", err)
		}
		static = sub
	}
	return web.New(e.app, static, e.logger).Serve(ctx, e.addr)
}

// signalContext ends on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
