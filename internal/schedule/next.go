package schedule

import (
	"context"
	"time"

	"chirpbot/internal/randx"
	"chirpbot/internal/state"
	logx "chirpbot/pkg/logx"
)

const persistAttempts = 3

func (f *family) nextFire() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.next
}

func (f *family) setNext(t time.Time) {
	f.mu.Lock()
	f.next = t
	f.mu.Unlock()
}

// resume returns the first fire time for j: the persisted time when it is
// still in the future, otherwise now plus a random initial delay. A fresh
// time is persisted before it is returned.
func (s *Scheduler) resume(ctx context.Context, j Job) time.Time {
	now := s.now()
	if t, ok := s.repo.BotState(ctx).NextFire[j.Name]; ok && t.After(now) {
		return t
	}
	next := now.Add(randx.Between(s.rand, j.InitialDelayMin, j.InitialDelayMax))
	s.persist(ctx, j.Name, next)
	return next
}

// Period returns one jittered interval for j.
func (s *Scheduler) period(j *Job) time.Duration {
	return max(randx.Jitter(s.rand, j.Interval, j.Jitter), minPeriod)
}

// advance computes the family's next fire from 'from' and persists it.
func (s *Scheduler) advance(ctx context.Context, f *family, from time.Time) {
	next := from.Add(s.period(f.job))
	f.setNext(next)
	s.persist(ctx, f.name, next)
	s.log.Debug("next fire", logx.String("job", f.name), logx.Time("at", next))
}

// persist writes one next-fire time, retrying briefly: losing it would let
// a restart fire the family early.
func (s *Scheduler) persist(ctx context.Context, name string, at time.Time) {
	ctx = context.WithoutCancel(ctx)
	var err error
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		err = s.repo.UpdateBotState(ctx, func(st *state.BotState) error {
			st.NextFire[name] = at.UTC()
			return nil
		})
		if err == nil {
			return
		}
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	s.log.Error("persisting next fire failed", logx.String("job", name), logx.Time("at", at), logx.Err(err))
}

// JobStatus is a point-in-time view of one family.
type JobStatus struct {
	Name     string    `json:"name"`
	Calendar bool      `json:"calendar"`
	Manual   bool      `json:"manual,omitempty"`
	Next     time.Time `json:"next"`
	Running  bool      `json:"running"`
	LastRun  time.Time `json:"last_run,omitzero"`
	LastErr  string    `json:"last_err,omitempty"`
	Runs     uint64    `json:"runs"`
	Skips    uint64    `json:"skips"`
	Failures uint64    `json:"failures"`
}

// Snapshot lists every family in registration order.
func (s *Scheduler) Snapshot() []JobStatus {
	s.mu.Lock()
	families := make([]*family, 0, len(s.order))
	for _, name := range s.order {
		families = append(families, s.families[name])
	}
	s.mu.Unlock()

	out := make([]JobStatus, 0, len(families))
	for _, f := range families {
		next := f.nextFire()
		if f.job == nil {
			next = s.cron.Entry(f.cronID).Next
		}
		f.mu.Lock()
		out = append(out, JobStatus{
			Name:     f.name,
			Calendar: f.job == nil,
			Manual:   f.job != nil && f.job.Manual,
			Next:     next,
			Running:  f.running.Load(),
			LastRun:  f.lastRun,
			LastErr:  f.lastErr,
			Runs:     f.runs,
			Skips:    f.skips,
			Failures: f.failures,
		})
		f.mu.Unlock()
	}
	return out
}

// NextActions maps each interval family to its next fire time. Before
// Start, persisted times are reported.
func (s *Scheduler) NextActions(ctx context.Context) map[string]time.Time {
	out := map[string]time.Time{}
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		for name, t := range s.repo.BotState(ctx).NextFire {
			out[name] = t
		}
		return out
	}
	for _, js := range s.Snapshot() {
		if !js.Calendar && !js.Manual && !js.Next.IsZero() {
			out[js.Name] = js.Next
		}
	}
	return out
}

// SecondsUntil returns whole seconds until name's next fire, or nil when
// it is unknown or already past.
func (s *Scheduler) SecondsUntil(ctx context.Context, name string) *int64 {
	t, ok := s.NextActions(ctx)[name]
	if !ok {
		return nil
	}
	d := t.Sub(s.now())
	if d <= 0 {
		return nil
	}
	secs := int64(d / time.Second)
	return &secs
}
