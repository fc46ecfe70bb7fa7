package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chirpbot/internal/app"
	"chirpbot/internal/transport/telegram"
)

func newModeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mode [on|off]",
		Short: "Show or switch cricket mode",
		Long: `Without arguments, print whether cricket mode is on. With on or off, switch
the mode and persist it before returning. A running daemon picks the new
mode up on its next action.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Stop(cmd.Context(), app.StopOneShot) }()

			svc := a.Service()
			if len(args) == 1 {
				on, err := telegram.ParseSwitch(args[0])
				if err != nil {
					return err
				}
				if err := svc.SetMode(cmd.Context(), on); err != nil {
					return err
				}
			}
			if isJSONMode(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]bool{"enabled": svc.Cricket()})
			}
			st := newStyles(isTTY(cmd.OutOrStdout()))
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", st.label.Render("cricket mode:"), st.onOff(svc.Cricket()))
			return nil
		},
	}
}
