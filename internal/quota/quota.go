// Package quota enforces the daily follow cap and the post cooldown.
//
// The follow counter rolls over lazily: every read compares the stored reset
// date with today's date in the configured location, so no background timer
// is required for correctness.
package quota

import (
	"context"
	"errors"
	"time"

	"chirpbot/internal/state"
	logx "chirpbot/pkg/logx"
)

var ErrExhausted = errors.New("quota: daily follow limit reached")

// Tracker reads and mutates the quota fields of the bot state.
type Tracker struct {
	repo     *state.Repo
	log      logx.Logger
	max      int
	cooldown time.Duration
	loc      *time.Location
	now      func() time.Time
}

type Option func(*Tracker)

func WithClock(now func() time.Time) Option { return func(t *Tracker) { t.now = now } }

func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) {
		if loc != nil {
			t.loc = loc
		}
	}
}

func New(repo *state.Repo, maxDaily int, postCooldown time.Duration, log logx.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		repo:     repo,
		log:      log.With(logx.Component("quota")),
		max:      maxDaily,
		cooldown: postCooldown,
		loc:      time.Local,
		now:      time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Snapshot is the effective quota as of now.
type Snapshot struct {
	Date      string `json:"date"`
	Followed  int    `json:"followed"`
	Max       int    `json:"max"`
	Remaining int    `json:"remaining"`
	Exhausted bool   `json:"exhausted"`
}

func (t *Tracker) today() string { return t.now().In(t.loc).Format(state.DateLayout) }

// effective returns the count that applies today: a stale reset date means
// the day has rolled over and the count is zero.
func (t *Tracker) effective(q state.QuotaState) int {
	if q.LastResetDate != t.today() {
		return 0
	}
	return max(q.DailyFollowCount, 0)
}

// Snapshot reports the quota without mutating it.
func (t *Tracker) Snapshot(ctx context.Context) Snapshot {
	c := t.effective(t.repo.BotState(ctx).Quota)
	return Snapshot{
		Date:      t.today(),
		Followed:  c,
		Max:       t.max,
		Remaining: max(t.max-c, 0),
		Exhausted: c >= t.max,
	}
}

// CanFollowMore is a pure query.
func (t *Tracker) CanFollowMore(ctx context.Context) bool {
	return !t.Snapshot(ctx).Exhausted
}

// Remaining returns how many follows are left today.
func (t *Tracker) Remaining(ctx context.Context) int {
	return t.Snapshot(ctx).Remaining
}

// RecordFollow counts one successful follow. It rolls the day over first
// and refuses to exceed the cap.
func (t *Tracker) RecordFollow(ctx context.Context) (int, error) {
	var count int
	today := t.today()
	err := t.repo.UpdateBotState(ctx, func(s *state.BotState) error {
		if s.Quota.LastResetDate != today {
			t.log.Info("daily follow quota rolled over", logx.String("from", s.Quota.LastResetDate), logx.String("to", today))
			s.Quota = state.QuotaState{LastResetDate: today}
		}
		if s.Quota.DailyFollowCount >= t.max {
			return ErrExhausted
		}
		s.Quota.DailyFollowCount++
		count = s.Quota.DailyFollowCount
		return nil
	})
	return count, err
}

// Reset zeroes today's counter. The scheduled daily reset calls it.
func (t *Tracker) Reset(ctx context.Context) error {
	today := t.today()
	return t.repo.UpdateBotState(ctx, func(s *state.BotState) error {
		s.Quota = state.QuotaState{LastResetDate: today}
		return nil
	})
}

// PostWait returns how long until the post cooldown has elapsed. Zero means
// a post is allowed now.
func (t *Tracker) PostWait(ctx context.Context) time.Duration {
	last := t.repo.BotState(ctx).LastPostAt
	if last.IsZero() {
		return 0
	}
	return max(t.cooldown-t.now().Sub(last), 0)
}

// RecordPost stores the time of a successful post.
func (t *Tracker) RecordPost(ctx context.Context, at time.Time) error {
	return t.repo.UpdateBotState(ctx, func(s *state.BotState) error {
		s.LastPostAt = at.UTC()
		return nil
	})
}
