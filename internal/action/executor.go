// Package action performs single bot actions against the social and content
// collaborators. Every entry point contains collaborator failures and
// reports them as a Result, so scheduled loops never see a raw error.
package action

import (
	"context"
	"errors"
	"sync"
	"time"

	"chirpbot/internal/eventbus"
	"chirpbot/internal/quota"
	"chirpbot/internal/randx"
	"chirpbot/internal/social"
	"chirpbot/internal/state"
	"chirpbot/internal/storage"
	logx "chirpbot/pkg/logx"
)

const (
	ActionPost     = "post"
	ActionFollow   = "follow"
	ActionUnfollow = "unfollow"
	ActionEngage   = "engage"
)

var errNoContent = errors.New("action: generator produced no content")

// Deps are the collaborators an Executor drives. Context may be nil.
type Deps struct {
	Repo      *state.Repo
	Quota     *quota.Tracker
	Publisher social.Publisher
	Generator social.ContentGenerator
	Context   social.ContextSource
	Bus       eventbus.Bus
	Log       logx.Logger
}

type Options struct {
	MaxPostLength     int
	RateLimitCooldown time.Duration
	CallTimeout       time.Duration
	UnfollowAfter     time.Duration
	// Pause between items of a follow, unfollow or engage batch.
	ActionPauseMin time.Duration
	ActionPauseMax time.Duration
	// PreGenerateMax bounds the random pause before generating a scheduled post.
	PreGenerateMax time.Duration
	Location       *time.Location
}

func (o Options) withDefaults() Options {
	if o.MaxPostLength <= 0 {
		o.MaxPostLength = 280
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 20 * time.Second
	}
	if o.UnfollowAfter <= 0 {
		o.UnfollowAfter = 7 * 24 * time.Hour
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

// Executor is safe for concurrent use. Posts are serialised so the cooldown
// check and the post it guards cannot interleave with another post.
type Executor struct {
	d    Deps
	opts Options

	postMu sync.Mutex

	now   func() time.Time
	rand  randx.Rand
	sleep func(ctx context.Context, d time.Duration) error
}

type Option func(*Executor)

func WithClock(now func() time.Time) Option { return func(e *Executor) { e.now = now } }
func WithRand(r randx.Rand) Option          { return func(e *Executor) { e.rand = r } }

// WithSleep replaces the pause function, mainly so tests can observe pauses.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = fn }
}

func New(d Deps, opts Options, extra ...Option) *Executor {
	if d.Bus == nil {
		d.Bus = eventbus.Nop{}
	}
	d.Log = d.Log.With(logx.Component("action"))
	e := &Executor{
		d:     d,
		opts:  opts.withDefaults(),
		now:   time.Now,
		rand:  randx.Default(),
		sleep: sleepCtx,
	}
	for _, o := range extra {
		o(e)
	}
	return e
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// call bounds one collaborator call by CallTimeout.
func (e *Executor) call(ctx context.Context, fn func(ctx context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
	defer cancel()
	return fn(cctx)
}

// backOffIfLimited sleeps the rate-limit cooldown so an immediate retry by
// the next caller does not hit the same limit.
func (e *Executor) backOffIfLimited(ctx context.Context, op string, err error) {
	if Classify(err) != KindRateLimited || e.opts.RateLimitCooldown <= 0 {
		return
	}
	e.d.Log.Warn("rate limited, cooling down", logx.String("op", op), logx.Duration("cooldown", e.opts.RateLimitCooldown))
	_ = e.sleep(ctx, e.opts.RateLimitCooldown)
}

func (e *Executor) pause(ctx context.Context) error {
	return e.sleep(ctx, randx.Between(e.rand, e.opts.ActionPauseMin, e.opts.ActionPauseMax))
}

// finish stamps timing, writes the audit trail and logs the outcome.
func (e *Executor) finish(ctx context.Context, r Result, start time.Time, target string) Result {
	r.Took = e.now().Sub(start)
	entry := storage.AuditEntry{
		At:     start.UTC(),
		Action: r.Action,
		Status: string(r.Status),
		Target: target,
		Reason: r.Reason,
		Error:  r.ErrText(),
		Count:  r.Count,
		TookMS: r.Took.Milliseconds(),
	}
	if err := e.d.Repo.Store().AppendAudit(context.WithoutCancel(ctx), entry); err != nil {
		e.d.Log.Debug("audit append failed", logx.Err(err))
	}

	fields := []logx.Field{
		logx.String("action", r.Action),
		logx.String("status", string(r.Status)),
		logx.Int("count", r.Count),
		logx.Duration("took", r.Took),
	}
	switch r.Status {
	case StatusFailure:
		e.d.Log.Warn("action failed", append(fields, logx.String("kind", string(r.Kind)), logx.Err(r.Err))...)
	case StatusSkipped:
		e.d.Log.Info("action skipped", append(fields, logx.String("reason", r.Reason))...)
	default:
		e.d.Log.Info("action done", fields...)
	}
	return r
}
