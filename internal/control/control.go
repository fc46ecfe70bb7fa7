// Package control is the bot's operator-facing surface. The dashboard, the
// Telegram channel, the MCP server and the CLI all drive the bot through a
// Service, so manual actions share the scheduled families' guards.
package control

import (
	"context"
	"errors"
	"time"

	"chirpbot/internal/action"
	"chirpbot/internal/config"
	"chirpbot/internal/eventbus"
	"chirpbot/internal/mode"
	"chirpbot/internal/quota"
	"chirpbot/internal/schedule"
	"chirpbot/internal/state"
	logx "chirpbot/pkg/logx"
)

// Action family names. They are also the keys of persisted next-fire times.
const (
	FamilyPost       = "post"
	FamilyFollow     = "follow"
	FamilyEngage     = "engage"
	FamilySweep      = "sweep"
	FamilyDailyReset = "daily_reset"
)

// Service bundles the components one bot instance runs with.
type Service struct {
	Repo      *state.Repo
	Quota     *quota.Tracker
	Mode      *mode.Controller
	Executor  *action.Executor
	Scheduler *schedule.Scheduler
	Bus       eventbus.Bus
	Log       logx.Logger
}

// RegisterJobs adds every enabled action family to the scheduler. The post
// family is always registered so manual posts have a guard, even when its
// timer is disabled.
func (s *Service) RegisterJobs(set *config.Settings) error {
	var errs []error
	add := func(name string, j config.Job, run func(ctx context.Context) error) {
		if !j.Enabled && name != FamilyPost {
			return
		}
		errs = append(errs, s.Scheduler.Add(schedule.Job{
			Manual:          !j.Enabled,
			Name:            name,
			Interval:        j.Every,
			Jitter:          j.Jitter,
			InitialDelayMin: j.InitialDelayMin,
			InitialDelayMax: j.InitialDelayMax,
			Timeout:         j.Timeout,
			Run:             run,
		}))
	}

	add(FamilyPost, set.Post, func(ctx context.Context) error {
		return resultErr(s.Executor.Post(ctx, s.Mode.Strategy(), action.PostRequest{Pause: true}))
	})
	add(FamilyFollow, set.Follow, func(ctx context.Context) error {
		return resultErr(s.Executor.Follow(ctx, s.Mode.Strategy(), "", set.Follow.Batch))
	})
	add(FamilyEngage, set.Engage, func(ctx context.Context) error {
		return resultErr(s.Executor.Engage(ctx, s.Mode.Strategy(), "", set.Engage.Batch))
	})
	add(FamilySweep, set.Sweep, func(ctx context.Context) error {
		return resultErr(s.Executor.UnfollowInactive(ctx))
	})
	errs = append(errs, s.Scheduler.AddCalendar(FamilyDailyReset, set.DailyReset, time.Minute, s.resetQuota))
	return errors.Join(errs...)
}

func (s *Service) resetQuota(ctx context.Context) error {
	if err := s.Quota.Reset(ctx); err != nil {
		return err
	}
	s.Log.Info("daily follow quota reset")
	s.Bus.Publish(eventbus.Event{Type: eventbus.TypeQuotaReset})
	return nil
}

// resultErr surfaces failures to the scheduler's counters. Skips are not
// failures.
func resultErr(r action.Result) error {
	if r.Status == action.StatusFailure {
		return r.Err
	}
	return nil
}

func overlapResult(name string) action.Result {
	return action.Result{Action: name, Status: action.StatusSkipped, Reason: "already in progress"}
}

func (s *Service) post(ctx context.Context, req action.PostRequest) action.Result {
	var res action.Result
	err := s.Scheduler.Do(ctx, FamilyPost, func(ctx context.Context) error {
		res = s.Executor.Post(ctx, s.Mode.Strategy(), req)
		return resultErr(res)
	})
	switch {
	case errors.Is(err, schedule.ErrOverlapSkip):
		return overlapResult(action.ActionPost)
	case schedule.IsPanic(err):
		return action.Result{Action: action.ActionPost, Status: action.StatusFailure, Kind: action.KindUnknown, Err: err, Reason: err.Error()}
	}
	return res
}

// Generate posts through the normal cooldown.
func (s *Service) Generate(ctx context.Context, category string) action.Result {
	return s.post(ctx, action.PostRequest{Category: category})
}

// PostNow posts immediately, bypassing the cooldown but not the guard.
func (s *Service) PostNow(ctx context.Context, category string) action.Result {
	return s.post(ctx, action.PostRequest{Category: category, Force: true})
}

// SetMode switches cricket mode on or off.
func (s *Service) SetMode(ctx context.Context, cricket bool) error {
	return s.Mode.Set(ctx, cricket)
}

func (s *Service) Cricket() bool { return s.Mode.Enabled() }

// Tweets returns up to limit posts, newest first. limit <= 0 returns all.
func (s *Service) Tweets(ctx context.Context, limit int) []state.TweetRecord {
	out := s.Repo.Tweets(ctx)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Service) Follows(ctx context.Context) *state.FollowBook { return s.Repo.Follows(ctx) }

// NextActions reports whole seconds until each family fires; nil means
// unknown or overdue.
func (s *Service) NextActions(ctx context.Context) map[string]*int64 {
	out := map[string]*int64{}
	for _, name := range []string{FamilyPost, FamilyFollow, FamilyEngage, FamilySweep} {
		out[name] = s.Scheduler.SecondsUntil(ctx, name)
	}
	return out
}

// Status is a point-in-time summary for operators.
type Status struct {
	Mode         string               `json:"mode"`
	Cricket      bool                 `json:"cricket"`
	Quota        quota.Snapshot       `json:"quota"`
	Totals       state.Totals         `json:"totals"`
	PostCooldown time.Duration        `json:"post_cooldown_remaining"`
	Next         map[string]*int64    `json:"next_actions"`
	Jobs         []schedule.JobStatus `json:"jobs"`
	LastTweet    *state.TweetRecord   `json:"last_tweet,omitempty"`
}

func (s *Service) Status(ctx context.Context) Status {
	st := Status{
		Mode:         s.Mode.Strategy().Name(),
		Cricket:      s.Mode.Enabled(),
		Quota:        s.Quota.Snapshot(ctx),
		Totals:       s.Repo.Follows(ctx).Totals(),
		PostCooldown: s.Quota.PostWait(ctx),
		Next:         s.NextActions(ctx),
		Jobs:         s.Scheduler.Snapshot(),
	}
	if tw := s.Tweets(ctx, 1); len(tw) == 1 {
		st.LastTweet = &tw[0]
	}
	return st
}
