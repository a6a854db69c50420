package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"video-transcriber/internal/domain"
)

func newHistoryCmd(e *env) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently processed items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := e.app.History(limit)
			if err != nil {
				return fmt.Errorf("list history: %w", err)
			}
			printHistory(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "max entries")
	return cmd
}

func printHistory(out io.Writer, entries []domain.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No history yet.")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tSTATUS\tSOURCE\tOUTPUT")
	for _, entry := range entries {
		output := entry.OutputPath
		if entry.Status == domain.HistoryStatusFailed {
			output = entry.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", entry.CreatedAt, entry.Status, entry.Source, output)
	}
	_ = tw.Flush()
}

func newDiagnoseCmd(e *env) *cobra.Command {
	var fix string

	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Check ffmpeg, whisper, the model and output folders",
		Long: `Run the environment checks shown in the app. With --fix, try to
install or repair one item by id and show the checks again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if fix != "" {
				report, err := e.app.InstallOrFixDiagnostic(fix)
				printDiagnostics(out, report)
				return err
			}
			report, err := e.app.RefreshDiagnostics()
			if err != nil {
				return err
			}
			printDiagnostics(out, report)
			if report.HasFailures {
				return fmt.Errorf("some checks failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fix, "fix", "", "install or repair the item with this id")
	return cmd
}

func printDiagnostics(out io.Writer, report domain.DiagnosticReport) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, item := range report.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", statusMark(item.Status), item.Name, item.Message)
		if item.Hint != "" && item.Status != domain.DiagnosticStatusPass {
			fmt.Fprintf(tw, "\t\t%s\n", item.Hint)
		}
	}
	_ = tw.Flush()
}

func statusMark(status domain.DiagnosticStatus) string {
	switch status {
	case domain.DiagnosticStatusPass:
		return "ok"
	case domain.DiagnosticStatusWarn:
		return "warn"
	default:
		return "FAIL"
	}
}
