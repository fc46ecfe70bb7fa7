package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	logx "chirpbot/pkg/logx"
)

// Job is a resolved action-family schedule.
type Job struct {
	Enabled         bool
	Every           time.Duration
	Jitter          time.Duration
	InitialDelayMin time.Duration
	InitialDelayMax time.Duration
	Timeout         time.Duration
	Batch           int
}

// Settings is Config with defaults applied and durations parsed.
type Settings struct {
	Location   *time.Location
	DailyReset string

	Post   Job
	Follow Job
	Engage Job
	Sweep  Job

	MaxDailyFollows   int
	PostCooldown      time.Duration
	RateLimitCooldown time.Duration
	UnfollowAfter     time.Duration
	MaxPostLength     int
	CallTimeout       time.Duration
	ActionPauseMin    time.Duration
	ActionPauseMax    time.Duration
	PreGenerateMax    time.Duration

	StorageBusyTimeout  time.Duration
	TelegramPollTimeout time.Duration
	DashboardRead       time.Duration
	DashboardWrite      time.Duration
	NotifyDedup         time.Duration
}

const (
	DefaultMaxDailyFollows = 50
	DefaultMaxPostLength   = 280
	DefaultDailyReset      = "0 0 * * *"
)

// Resolve applies defaults and validates every duration and schedule.
func (c *Config) Resolve() (*Settings, error) {
	if c == nil {
		return nil, errors.New("config is nil")
	}
	var errs []error
	dur := func(path, raw string, def time.Duration) time.Duration {
		d, err := ParseDurationOrDefault(path, raw, def)
		if err != nil {
			errs = append(errs, err)
			return def
		}
		return d
	}
	job := func(name string, jc JobConfig, enabled bool, every, jitter, dmin, dmax time.Duration, batch int) Job {
		j := Job{
			Enabled:         enabled,
			Every:           dur("schedule."+name+".every", jc.Every, every),
			Jitter:          dur("schedule."+name+".jitter", jc.Jitter, jitter),
			InitialDelayMin: dur("schedule."+name+".initial_delay_min", jc.InitialDelayMin, dmin),
			InitialDelayMax: dur("schedule."+name+".initial_delay_max", jc.InitialDelayMax, dmax),
			Timeout:         dur("schedule."+name+".timeout", jc.Timeout, 15*time.Minute),
			Batch:           batch,
		}
		if jc.Enabled != nil {
			j.Enabled = *jc.Enabled
		}
		if jc.Batch > 0 {
			j.Batch = jc.Batch
		}
		if j.Jitter >= j.Every {
			errs = append(errs, fmt.Errorf("schedule.%s: jitter %s must be below interval %s", name, j.Jitter, j.Every))
		}
		if j.InitialDelayMax < j.InitialDelayMin {
			errs = append(errs, fmt.Errorf("schedule.%s: initial_delay_max below initial_delay_min", name))
		}
		return j
	}

	s := &Settings{
		Post:   job("post", c.Schedule.Post, true, 30*time.Minute, 5*time.Minute, time.Minute, 30*time.Minute, 1),
		Follow: job("follow", c.Schedule.Follow, true, 20*time.Minute, 3*time.Minute, 2*time.Minute, 15*time.Minute, 5),
		Engage: job("engage", c.Schedule.Engage, false, 45*time.Minute, 10*time.Minute, 5*time.Minute, 20*time.Minute, 5),
		Sweep:  job("sweep", c.Schedule.Sweep, true, 7*24*time.Hour, 0, 7*24*time.Hour, 7*24*time.Hour, 0),

		MaxDailyFollows:   c.Limits.MaxDailyFollows,
		PostCooldown:      dur("limits.post_cooldown", c.Limits.PostCooldown, 1500*time.Second),
		RateLimitCooldown: dur("limits.rate_limit_cooldown", c.Limits.RateLimitCooldown, time.Minute),
		UnfollowAfter:     dur("limits.unfollow_after", c.Limits.UnfollowAfter, 7*24*time.Hour),
		MaxPostLength:     c.Limits.MaxPostLength,
		CallTimeout:       dur("limits.call_timeout", c.Limits.CallTimeout, 20*time.Second),
		ActionPauseMin:    dur("limits.action_pause_min", c.Limits.ActionPauseMin, 30*time.Second),
		ActionPauseMax:    dur("limits.action_pause_max", c.Limits.ActionPauseMax, 120*time.Second),
		PreGenerateMax:    dur("limits.pre_generate_max", c.Limits.PreGenerateMax, 180*time.Second),

		StorageBusyTimeout:  dur("storage.busy_timeout", c.Storage.BusyTimeout, 5*time.Second),
		TelegramPollTimeout: dur("telegram.poll_timeout", c.Telegram.PollTimeout, 10*time.Second),
		DashboardRead:       dur("dashboard.read_timeout", c.Dashboard.ReadTimeout, 10*time.Second),
		DashboardWrite:      dur("dashboard.write_timeout", c.Dashboard.WriteTimeout, 5*time.Minute),
		NotifyDedup:         dur("notify.dedup_window", c.Notify.DedupWindow, 10*time.Minute),
	}
	if s.MaxDailyFollows <= 0 {
		s.MaxDailyFollows = DefaultMaxDailyFollows
	}
	if s.MaxPostLength <= 0 {
		s.MaxPostLength = DefaultMaxPostLength
	}
	if s.MaxPostLength < 4 {
		errs = append(errs, fmt.Errorf("limits.max_post_length: %d is too small", s.MaxPostLength))
	}
	if s.ActionPauseMax < s.ActionPauseMin {
		errs = append(errs, errors.New("limits.action_pause_max below action_pause_min"))
	}

	s.Location = time.Local
	if tz := strings.TrimSpace(c.Schedule.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			errs = append(errs, fmt.Errorf("schedule.timezone: %w", err))
		} else {
			s.Location = loc
		}
	}
	s.DailyReset = strings.TrimSpace(c.Schedule.DailyReset)
	if s.DailyReset == "" {
		s.DailyReset = DefaultDailyReset
	}
	if _, err := cron.ParseStandard(s.DailyReset); err != nil {
		errs = append(errs, fmt.Errorf("schedule.daily_reset: %w", err))
	}

	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "file", "sqlite", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	if !logx.ValidLevel(c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	if c.Telegram.Enabled && strings.TrimSpace(c.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram.token is required when telegram is enabled"))
	}

	if c.Notify.Enabled && !c.Telegram.Enabled {
		errs = append(errs, errors.New("notify requires telegram to be enabled"))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return s, nil
}

// LogConfig maps the logging section onto logx.
func (c *Config) LogConfig() logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File: logx.FileConfig{
			Enabled: c.Logging.File.Enabled,
			Path:    c.Logging.File.Path,
		},
		Operator: logx.OperatorConfig{
			Enabled:    c.Logging.Operator.Enabled && c.Telegram.Enabled,
			MinLevel:   c.Logging.Operator.MinLevel,
			RatePerSec: c.Logging.Operator.RatePerSec,
		},
	}
}
