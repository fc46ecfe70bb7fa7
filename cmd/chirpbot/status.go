package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chirpbot/internal/action"
	"chirpbot/internal/app"
	"chirpbot/internal/control"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show mode, quota, follower totals and upcoming actions",
		Long: `Show the persisted bot state: content mode, today's follow quota, follower
totals, post cooldown and the time until each action family fires next.

Examples:
  chirpbot status
  chirpbot status --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Stop(cmd.Context(), app.StopOneShot) }()

			st := a.Service().Status(cmd.Context())
			if isJSONMode(cmd) {
				return writeJSON(cmd.OutOrStdout(), st)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderStatus(newStyles(isTTY(cmd.OutOrStdout())), st))
			return nil
		},
	}
}

func renderStatus(s styles, st control.Status) string {
	var b strings.Builder
	row := func(k, v string) {
		fmt.Fprintf(&b, "  %s %s\n", s.label.Render(fmt.Sprintf("%-18s", k)), v)
	}
	b.WriteString(s.heading.Render("chirpbot") + "\n")
	row("mode", st.Mode)
	row("cricket", s.onOff(st.Cricket))
	quota := fmt.Sprintf("%d/%d followed today (%d left)", st.Quota.Followed, st.Quota.Max, st.Quota.Remaining)
	if st.Quota.Exhausted {
		quota = s.warn.Render(quota + " exhausted")
	}
	row("quota", quota)
	row("following", fmt.Sprintf("%d (total %d, unfollowed %d)", st.Totals.CurrentlyFollowing, st.Totals.TotalFollowed, st.Totals.TotalUnfollowed))
	if st.PostCooldown > 0 {
		row("post cooldown", st.PostCooldown.Round(time.Second).String())
	} else {
		row("post cooldown", s.ok.Render("ready"))
	}

	b.WriteString("\n" + s.heading.Render("next actions") + "\n")
	names := make([]string, 0, len(st.Next))
	for name := range st.Next {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := st.Next[name]
		if v == nil {
			row(name, s.dim.Render("due / not scheduled"))
			continue
		}
		row(name, "in "+(time.Duration(*v)*time.Second).String())
	}

	if len(st.Jobs) > 0 {
		b.WriteString("\n" + s.heading.Render("jobs") + "\n")
		for _, j := range st.Jobs {
			line := fmt.Sprintf("runs %d  skips %d  failures %d", j.Runs, j.Skips, j.Failures)
			if j.Running {
				line += "  " + s.ok.Render("running")
			}
			if j.LastErr != "" {
				line += "  " + s.warn.Render(j.LastErr)
			}
			row(j.Name, line)
		}
	}
	if st.LastTweet != nil {
		b.WriteString("\n" + s.heading.Render("last post") + "\n")
		row(st.LastTweet.Category, st.LastTweet.Text)
	}
	return b.String()
}

func renderResult(s styles, r action.Result) string {
	switch r.Status {
	case action.StatusSuccess:
		text := ""
		if r.Tweet != nil {
			text = "\n" + r.Tweet.Text
		}
		return s.ok.Render("posted") + text
	case action.StatusSkipped:
		return s.dim.Render("skipped: ") + r.Reason
	default:
		return s.warn.Render(fmt.Sprintf("failed (%s): ", r.Kind)) + r.Reason
	}
}
