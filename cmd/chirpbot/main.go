// Package main is the chirpbot command: the daemon plus one-shot operator
// commands against the same state.
package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"chirpbot/internal/app"
)

// Set via ldflags: -X main.version=1.0.0
var version = "dev"

const envConfig = "CHIRPBOT_CONFIG"

func main() {
	if err := fang.Execute(context.Background(), newRootCmd(), fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chirpbot",
		Short: "Scheduled posting and follow automation for X",
		Long: `chirpbot posts generated content on a jittered schedule, follows accounts
found by search within a daily quota and unfollows them after a grace period.

Run "chirpbot run" as the long-lived daemon. The other commands act on the
same persisted state and can be used while the daemon runs.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	def := os.Getenv(envConfig)
	if def == "" {
		def = "config.json"
	}
	cmd.PersistentFlags().StringP("config", "c", def, "path to the JSON or YAML config (env "+envConfig+")")
	cmd.PersistentFlags().Bool("json", false, "print JSON instead of styled text")

	lipgloss.SetHasDarkBackground(true)

	cmd.AddCommand(
		newRunCmd(),
		newPostCmd(),
		newModeCmd(),
		newStatusCmd(),
		newMCPCmd(),
	)
	return cmd
}

func configPath(cmd *cobra.Command) string {
	p, _ := cmd.Flags().GetString("config")
	return p
}

func isJSONMode(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

// openApp builds the app for a one-shot command. Logs go to stderr so
// stdout stays clean for command output.
func openApp(cmd *cobra.Command) (*app.App, error) {
	return app.New(configPath(cmd), app.WithLogOutput(cmd.ErrOrStderr()))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
