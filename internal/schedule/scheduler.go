package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"chirpbot/internal/eventbus"
	"chirpbot/internal/randx"
	"chirpbot/internal/runtime/supervisor"
	"chirpbot/internal/state"
	logx "chirpbot/pkg/logx"
)

var (
	ErrOverlapSkip = errors.New("schedule: previous run still in flight")
	ErrUnknownJob  = errors.New("schedule: unknown job")
	ErrStarted     = errors.New("schedule: already started")
)

// minPeriod keeps a bad jitter configuration from producing a hot loop.
const minPeriod = time.Second

// Job is an interval-driven action family.
type Job struct {
	Name            string
	Interval        time.Duration
	Jitter          time.Duration
	InitialDelayMin time.Duration
	InitialDelayMax time.Duration
	// Timeout bounds one run; zero means no bound beyond the caller's context.
	Timeout time.Duration
	Run     func(ctx context.Context) error
	// Manual jobs never fire on a timer; they only run through Do.
	Manual bool
}

func (j Job) validate() error {
	switch {
	case j.Name == "":
		return errors.New("schedule: job name is empty")
	case j.Run == nil:
		return fmt.Errorf("schedule: job %q has no body", j.Name)
	case j.Manual:
		return nil
	case j.Interval <= 0:
		return fmt.Errorf("schedule: job %q interval must be > 0", j.Name)
	case j.Jitter < 0 || j.Jitter >= j.Interval:
		return fmt.Errorf("schedule: job %q jitter must be in [0, interval)", j.Name)
	}
	return nil
}

type family struct {
	name     string
	job      *Job // nil for calendar jobs
	cronID   cron.EntryID
	running  atomic.Bool
	trigger  chan struct{}
	timeout  time.Duration
	calendar func(ctx context.Context) error

	mu       sync.Mutex
	next     time.Time
	lastRun  time.Time
	lastErr  string
	runs     uint64
	skips    uint64
	failures uint64
}

// Scheduler owns every action family. Jobs are registered before Start.
type Scheduler struct {
	repo *state.Repo
	bus  eventbus.Bus
	log  logx.Logger
	loc  *time.Location
	now  func() time.Time
	rand randx.Rand

	mu       sync.Mutex
	families map[string]*family
	order    []string
	cron     *cron.Cron
	started  bool
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }
func WithRand(r randx.Rand) Option          { return func(s *Scheduler) { s.rand = r } }
func WithBus(b eventbus.Bus) Option         { return func(s *Scheduler) { s.bus = b } }

func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func New(repo *state.Repo, log logx.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		repo:     repo,
		bus:      eventbus.Nop{},
		log:      log.With(logx.Component("schedule")),
		loc:      time.Local,
		now:      time.Now,
		rand:     randx.Default(),
		families: map[string]*family{},
	}
	for _, o := range opts {
		o(s)
	}
	s.cron = cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(logx.CronLogger{L: s.log}),
	)
	return s
}

func (s *Scheduler) register(f *family) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrStarted
	}
	if _, dup := s.families[f.name]; dup {
		return fmt.Errorf("schedule: duplicate job %q", f.name)
	}
	s.families[f.name] = f
	s.order = append(s.order, f.name)
	return nil
}

// Add registers an interval job.
func (s *Scheduler) Add(j Job) error {
	if err := j.validate(); err != nil {
		return err
	}
	return s.register(&family{name: j.Name, job: &j, timeout: j.Timeout, trigger: make(chan struct{}, 1)})
}

// AddCalendar registers a cron-driven job using a standard five-field spec
// evaluated in the scheduler's location.
func (s *Scheduler) AddCalendar(name, spec string, timeout time.Duration, run func(ctx context.Context) error) error {
	if run == nil {
		return fmt.Errorf("schedule: job %q has no body", name)
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("schedule: job %q: %w", name, err)
	}
	f := &family{name: name, timeout: timeout, calendar: run}
	if err := s.register(f); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.cron.AddFunc(spec, func() {
		// cron owns no context; the run is bounded by the job timeout.
		_ = s.Do(context.Background(), name, run)
	})
	if err != nil {
		return err
	}
	f.cronID = id
	return nil
}

func (s *Scheduler) family(name string) (*family, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.families[name]
	return f, ok
}

// Start resumes every interval job's schedule and launches its loop under
// sup. Loops stop when sup's context is cancelled.
func (s *Scheduler) Start(ctx context.Context, sup *supervisor.Supervisor) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrStarted
	}
	s.started = true
	families := make([]*family, 0, len(s.order))
	for _, name := range s.order {
		families = append(families, s.families[name])
	}
	s.mu.Unlock()

	for _, f := range families {
		if f.job == nil || f.job.Manual {
			continue
		}
		next := s.resume(ctx, *f.job)
		f.setNext(next)
		s.log.Info("job scheduled", logx.String("job", f.name), logx.Time("next", next), logx.Duration("in", next.Sub(s.now())))
		sup.GoRestart("schedule."+f.name, func(ctx context.Context) error {
			return s.loop(ctx, f)
		}, supervisor.WithRestartBackoff(time.Second, time.Minute))
	}
	s.cron.Start()
	sup.Go("schedule.cron", func(ctx context.Context) error {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		return nil
	})
	return nil
}

// loop waits for the family's next fire, runs it and reschedules. It only
// returns when ctx is done.
func (s *Scheduler) loop(ctx context.Context, f *family) error {
	j := f.job
	for {
		wait := max(f.nextFire().Sub(s.now()), 0)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-f.trigger:
			t.Stop()
		case <-t.C:
		}

		// Advance the schedule before the body so a crash or hang inside
		// it cannot turn into an immediate refire after restart.
		s.advance(ctx, f, s.now())
		err := s.Do(ctx, f.name, j.Run)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrOverlapSkip) {
			continue
		}
		// Recompute from completion so a slow run does not compound drift.
		s.advance(ctx, f, s.now())
	}
}

// Trigger makes an interval job fire now instead of at its next time.
func (s *Scheduler) Trigger(name string) error {
	f, ok := s.family(name)
	if !ok || f.trigger == nil {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	select {
	case f.trigger <- struct{}{}:
	default:
	}
	return nil
}
