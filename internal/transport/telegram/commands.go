package telegram

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"chirpbot/internal/action"
	"chirpbot/internal/control"
)

// Operator is the bot surface the commands drive.
type Operator interface {
	Status(ctx context.Context) control.Status
	SetMode(ctx context.Context, cricket bool) error
	PostNow(ctx context.Context, category string) action.Result
}

// RegisterCommands installs the operator commands on r.
func RegisterCommands(r *Router, op Operator) {
	r.Handle(Command{Name: "status", Description: "Mode, quota, totals and next actions", Handle: func(ctx context.Context, _ *Request) (string, error) {
		return FormatStatus(op.Status(ctx)), nil
	}})
	r.Handle(Command{Name: "next", Description: "Time until the next post and follow", Handle: func(ctx context.Context, _ *Request) (string, error) {
		return FormatNext(op.Status(ctx).Next), nil
	}})
	r.Handle(Command{Name: "mode", Usage: "/mode [on|off]", Description: "Show or switch cricket mode", Handle: func(ctx context.Context, req *Request) (string, error) {
		if len(req.Args) == 0 {
			return "Cricket mode is " + onOff(op.Status(ctx).Cricket) + ".", nil
		}
		on, err := ParseSwitch(req.Args[0])
		if err != nil {
			return "", err
		}
		if err := op.SetMode(ctx, on); err != nil {
			return "", err
		}
		return "Cricket mode " + onOff(on) + ".", nil
	}})
	r.Handle(Command{Name: "post", Usage: "/post [category]", Description: "Post now, bypassing the cooldown", Timeout: 3 * time.Minute, Handle: func(ctx context.Context, req *Request) (string, error) {
		category := ""
		if len(req.Args) > 0 {
			category = req.Args[0]
		}
		return FormatResult(op.PostNow(ctx, category)), nil
	}})
	r.Handle(Command{Name: "help", Description: "List commands", Handle: func(context.Context, *Request) (string, error) {
		return FormatHelp(r.Commands()), nil
	}})
	r.Handle(Command{Name: "start", Description: "List commands", Handle: func(context.Context, *Request) (string, error) {
		return FormatHelp(r.Commands()), nil
	}})
}

func ParseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "enable", "enabled":
		return true, nil
	case "off", "false", "0", "disable", "disabled":
		return false, nil
	}
	return false, errors.New("expected on or off")
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func FormatHelp(cmds []Command) string {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, c := range cmds {
		usage := c.Usage
		if usage == "" {
			usage = "/" + c.Name
		}
		fmt.Fprintf(&b, "%s  %s\n", usage, c.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatNext renders seconds-until values; nil is shown as "due".
func FormatNext(next map[string]*int64) string {
	names := make([]string, 0, len(next))
	for k := range next {
		names = append(names, k)
	}
	slices.Sort(names)
	var b strings.Builder
	for _, name := range names {
		v := "due"
		if s := next[name]; s != nil {
			v = "in " + (time.Duration(*s) * time.Second).String()
		}
		fmt.Fprintf(&b, "%s: %s\n", name, v)
	}
	return strings.TrimRight(b.String(), "\n")
}

func FormatStatus(st control.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mode: %s\n", st.Mode)
	fmt.Fprintf(&b, "Follows today: %d/%d\n", st.Quota.Followed, st.Quota.Max)
	fmt.Fprintf(&b, "Following: %d (total %d, unfollowed %d)\n", st.Totals.CurrentlyFollowing, st.Totals.TotalFollowed, st.Totals.TotalUnfollowed)
	if st.PostCooldown > 0 {
		fmt.Fprintf(&b, "Post cooldown: %s\n", st.PostCooldown.Round(time.Second))
	}
	if st.LastTweet != nil {
		fmt.Fprintf(&b, "Last post: %s (%s)\n", st.LastTweet.CreatedAt.Format(time.RFC3339), st.LastTweet.Category)
	}
	b.WriteString(FormatNext(st.Next))
	return b.String()
}

func FormatResult(r action.Result) string {
	switch r.Status {
	case action.StatusSuccess:
		if r.Tweet != nil {
			return fmt.Sprintf("Posted %s:\n%s", r.Tweet.ExternalID, r.Tweet.Text)
		}
		return fmt.Sprintf("%s done (%d)", r.Action, r.Count)
	case action.StatusSkipped:
		return fmt.Sprintf("%s skipped: %s", r.Action, r.Reason)
	default:
		return fmt.Sprintf("%s failed (%s): %s", r.Action, r.Kind, r.Reason)
	}
}
