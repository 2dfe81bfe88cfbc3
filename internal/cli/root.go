// Package cli implements actrecctl, a terminal reader for a running recorder.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gosuda/actrec/internal/client"
)

type options struct {
	server     string
	jsonOutput bool
}

// NewRootCmd builds the actrecctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "actrecctl",
		Short: "actrecctl - read the activity recorder",
		Long: `actrecctl reads the rolling activity log kept by actrec: recent network
requests, protocol (GraphQL) traffic and console output from the browser.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.server, "server", envOr("ACTREC_SERVER_URL", "http://localhost:8080"), "recorder base URL")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output in JSON format")

	root.AddCommand(
		newGetCmd(opts),
		newSummaryCmd(opts),
		newClearCmd(opts),
		newWatchCmd(opts),
	)

	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func (o *options) client() *client.Client {
	return client.New(o.server, nil)
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
