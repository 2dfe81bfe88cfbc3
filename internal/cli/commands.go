package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/gosuda/actrec/internal/client"
	"github.com/gosuda/actrec/internal/domain"
)

func newGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:       "get [network|protocol|console]",
		Short:     "Print the activity log, or one category of it",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"network", "protocol", "console"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var only domain.Category
			if len(args) == 1 {
				c, err := domain.ParseCategory(args[0])
				if err != nil {
					return err
				}
				only = c
			}

			l := opts.client().GetLog(cmd.Context())
			out := cmd.OutOrStdout()

			if opts.jsonOutput {
				if only == "" {
					return outputJSON(out, l)
				}
				return outputJSON(out, categoryOf(l, only))
			}

			printLog(out, l, only)
			return nil
		},
	}
}

func newSummaryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print how many events each category holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.client().Summary(cmd.Context())
			if err != nil {
				return fmt.Errorf("summary: %w", err)
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return outputJSON(out, s)
			}

			for _, c := range domain.Categories() {
				fmt.Fprintf(out, "%-9s %d\n", c, s.Counts[c])
			}
			fmt.Fprintf(out, "%-9s %d (window %s)\n", "total", s.Total, s.RetentionWindow)
			return nil
		},
	}
}

func newClearCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty every category of the activity log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.client().Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Activity log cleared.")
			return nil
		},
	}
}

func newWatchCmd(opts *options) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch [network|protocol|console]",
		Short: "Re-print the log on a fixed cadence until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var only domain.Category
			if len(args) == 1 {
				c, err := domain.ParseCategory(args[0])
				if err != nil {
					return err
				}
				only = c
			}

			out := cmd.OutOrStdout()
			opts.client().Watch(cmd.Context(), interval, func(l *domain.ActivityLog) {
				fmt.Fprintf(out, "--- %s ---\n", time.Now().Format(time.TimeOnly))
				printLog(out, l, only)
			})
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", client.DefaultPollInterval, "poll interval")
	return cmd
}

func categoryOf(l *domain.ActivityLog, c domain.Category) any {
	switch c {
	case domain.CategoryProtocol:
		return l.Protocol
	case domain.CategoryConsole:
		return l.Console
	default:
		return l.Network
	}
}

func printLog(w io.Writer, l *domain.ActivityLog, only domain.Category) {
	for _, c := range domain.Categories() {
		if only != "" && c != only {
			continue
		}
		fmt.Fprintf(w, "[%s] %d\n", c, l.Len(c))
		switch c {
		case domain.CategoryConsole:
			for _, ev := range l.Console {
				fmt.Fprintf(w, "  %s %-5s %v\n", stamp(ev.Timestamp), ev.Level, ev.Messages)
			}
		case domain.CategoryProtocol:
			for _, ev := range l.Protocol {
				fmt.Fprintf(w, "  %s %s %s\n", stamp(ev.Timestamp), orDash(ev.OperationName), ev.URL)
			}
		default:
			for _, ev := range l.Network {
				fmt.Fprintf(w, "  %s %-6s %s %s\n", stamp(ev.Timestamp), orDash(ev.Method), status(ev.StatusCode), ev.URL)
			}
		}
	}
}

func stamp(ms int64) string {
	return time.UnixMilli(ms).Format("15:04:05.000")
}

func status(code *int) string {
	if code == nil {
		return "---"
	}
	return fmt.Sprintf("%3d", *code)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
