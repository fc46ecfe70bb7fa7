package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chirpbot/internal/action"
	"chirpbot/internal/app"
)

func newPostCmd() *cobra.Command {
	var category string
	var respectCooldown bool
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Generate and publish one post now",
		Long: `Generate and publish one post immediately. The post cooldown is bypassed
unless --respect-cooldown is set; the post family's in-flight guard always
applies, so this never overlaps a running post in this process.

Examples:
  chirpbot post
  chirpbot post --category humor
  chirpbot post --respect-cooldown --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Stop(cmd.Context(), app.StopOneShot) }()

			var res action.Result
			if respectCooldown {
				res = a.Service().Generate(cmd.Context(), category)
			} else {
				res = a.Service().PostNow(cmd.Context(), category)
			}
			if isJSONMode(cmd) {
				if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), renderResult(newStyles(isTTY(cmd.OutOrStdout())), res))
			}
			if res.Status == action.StatusFailure {
				return fmt.Errorf("post failed: %s", res.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "content category (picked by the current mode when empty)")
	cmd.Flags().BoolVar(&respectCooldown, "respect-cooldown", false, "skip when the post cooldown has not elapsed")
	return cmd
}
