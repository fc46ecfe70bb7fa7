// Package mode holds the bot's content mode and the strategy each mode maps to.
package mode

import (
	"context"
	"sync"
	"sync/atomic"

	"chirpbot/internal/eventbus"
	"chirpbot/internal/state"
	logx "chirpbot/pkg/logx"
)

// Controller is the single owner of the persisted mode flag. Reads come from
// an in-memory cache that Set updates only after the write is durable.
type Controller struct {
	mu      sync.Mutex
	enabled atomic.Bool
	repo    *state.Repo
	bus     eventbus.Bus
	log     logx.Logger
}

// New loads the persisted mode. When none was ever saved, def applies.
func New(ctx context.Context, repo *state.Repo, def bool, bus eventbus.Bus, log logx.Logger) *Controller {
	if bus == nil {
		bus = eventbus.Nop{}
	}
	c := &Controller{repo: repo, bus: bus, log: log.With(logx.Component("mode"))}
	v := def
	if p := repo.BotState(ctx).CricketMode; p != nil {
		v = *p
	}
	c.enabled.Store(v)
	return c
}

// Enabled reports whether cricket mode is on.
func (c *Controller) Enabled() bool { return c.enabled.Load() }

// Strategy returns the strategy for the current mode.
func (c *Controller) Strategy() Strategy { return For(c.Enabled()) }

// Set persists the mode synchronously, then updates the cache. On a write
// failure the previous mode stays in effect.
func (c *Controller) Set(ctx context.Context, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.enabled.Load()
	err := c.repo.UpdateBotState(ctx, func(s *state.BotState) error {
		s.CricketMode = &enabled
		return nil
	})
	if err != nil {
		c.log.Error("persisting mode failed", logx.Bool("cricket", enabled), logx.Err(err))
		return err
	}
	c.enabled.Store(enabled)
	if prev != enabled {
		c.log.Info("mode changed", logx.Bool("cricket", enabled))
		c.bus.Publish(eventbus.Event{Type: eventbus.TypeModeChanged, Data: enabled})
	}
	return nil
}
