// Package notifier turns bus events into operator messages. Delivery is
// rate limited, retried with backoff and deduplicated over a short window.
package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"chirpbot/internal/action"
	"chirpbot/internal/eventbus"
	"chirpbot/internal/schedule"
	logx "chirpbot/pkg/logx"
)

// Sender delivers one message.
type Sender interface {
	Notify(ctx context.Context, text string) error
}

type Config struct {
	RatePerSec  float64
	RetryMax    int
	RetryBase   time.Duration
	DedupWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.RatePerSec <= 0 {
		c.RatePerSec = 1
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = 10 * time.Minute
	}
	return c
}

// HistoryItem is one delivered message.
type HistoryItem struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

const historySize = 100

type Service struct {
	cfg     Config
	sender  Sender
	bus     eventbus.Bus
	log     logx.Logger
	limiter *rate.Limiter
	now     func() time.Time

	mu      sync.Mutex
	dedup   map[string]time.Time
	history []HistoryItem
}

func New(cfg Config, sender Sender, bus eventbus.Bus, log logx.Logger) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		cfg:     cfg,
		sender:  sender,
		bus:     bus,
		log:     log.With(logx.Component("notifier")),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), max(1, int(cfg.RatePerSec))),
		now:     time.Now,
		dedup:   map[string]time.Time{},
	}
}

// Run delivers events until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ch, unsubscribe := s.bus.Subscribe(64)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			text, send := Format(ev)
			if !send || !s.allow(text) {
				continue
			}
			if err := s.deliver(ctx, text); err != nil && ctx.Err() == nil {
				s.log.Warn("notification dropped", logx.String("event", ev.Type), logx.Err(err))
			}
		}
	}
}

// allow suppresses a text already sent within the dedup window.
func (s *Service) allow(text string) bool {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, until := range s.dedup {
		if now.After(until) {
			delete(s.dedup, k)
		}
	}
	if until, ok := s.dedup[text]; ok && now.Before(until) {
		return false
	}
	s.dedup[text] = now.Add(s.cfg.DedupWindow)
	return true
}

func (s *Service) deliver(ctx context.Context, text string) error {
	backoff := s.cfg.RetryBase
	var err error
	for attempt := 0; attempt <= s.cfg.RetryMax; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
			backoff *= 2
		}
		if err = s.limiter.Wait(ctx); err != nil {
			return err
		}
		if err = s.sender.Notify(ctx, text); err == nil {
			s.record(text)
			return nil
		}
	}
	return err
}

func (s *Service) record(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, HistoryItem{At: s.now(), Text: text})
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
}

// History returns delivered messages, oldest first.
func (s *Service) History() []HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

// Format renders an event, reporting false for events operators do not
// need to see.
func Format(ev eventbus.Event) (string, bool) {
	switch ev.Type {
	case eventbus.TypeModeChanged:
		if on, ok := ev.Data.(bool); ok {
			if on {
				return "Cricket mode enabled", true
			}
			return "Cricket mode disabled", true
		}
	case eventbus.TypeJobPanicked:
		if pe, ok := ev.Data.(*schedule.PanicError); ok {
			return fmt.Sprintf("Job %s panicked: %v", pe.Job, pe.Value), true
		}
	}

	r, ok := ev.Data.(action.Result)
	if !ok {
		return "", false
	}
	switch ev.Type {
	case eventbus.TypePostPublished:
		if r.Tweet != nil {
			return fmt.Sprintf("Posted [%s]:\n%s", r.Tweet.Category, r.Tweet.Text), true
		}
	case eventbus.TypePostFailed:
		return fmt.Sprintf("Post failed (%s): %s", r.Kind, r.Reason), true
	case eventbus.TypeFollowBatch:
		if r.Status == action.StatusFailure {
			return fmt.Sprintf("Follow batch failed (%s): %s", r.Kind, r.Reason), true
		}
		if r.Count > 0 {
			return fmt.Sprintf("Followed %d accounts (%d failed)", r.Count, r.Failed), true
		}
	case eventbus.TypeSweepDone:
		if r.Count > 0 || r.Failed > 0 {
			return fmt.Sprintf("Unfollow sweep: %d unfollowed, %d failed", r.Count, r.Failed), true
		}
	case eventbus.TypeEngageDone:
		if r.Status == action.StatusFailure {
			return fmt.Sprintf("Engagement failed (%s): %s", r.Kind, r.Reason), true
		}
	}
	return "", false
}
