package action

import (
	"context"
	"fmt"

	"chirpbot/internal/eventbus"
	"chirpbot/internal/mode"
	"chirpbot/internal/social"
	logx "chirpbot/pkg/logx"
)

const (
	likeThreshold   = 0.5
	repostThreshold = 0.7
)

// Engage likes and reposts recent content found by query. Each item is
// liked with probability 0.5 and reposted with probability 0.3.
func (e *Executor) Engage(ctx context.Context, strat mode.Strategy, query string, maxCount int) Result {
	start := e.now()
	if query == "" {
		query = strat.EngageQuery(e.rand)
	}
	r := e.engage(ctx, query, maxCount)
	e.d.Bus.Publish(eventbus.Event{Type: eventbus.TypeEngageDone, Data: r})
	return e.finish(ctx, r, start, query)
}

func (e *Executor) engage(ctx context.Context, query string, maxCount int) Result {
	if maxCount <= 0 {
		return skipped(ActionEngage, "batch size is zero")
	}
	var items []social.ContentItem
	err := e.call(ctx, func(ctx context.Context) (err error) {
		items, err = e.d.Publisher.SearchContent(ctx, query, maxCount)
		return err
	})
	if err != nil {
		e.backOffIfLimited(ctx, "search", err)
		return failed(ActionEngage, fmt.Errorf("search: %w", err))
	}
	if len(items) == 0 {
		return skipped(ActionEngage, "no content found")
	}

	res := Result{Action: ActionEngage, Status: StatusSuccess}
	for i, it := range items[:min(len(items), maxCount)] {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			if err := e.pause(ctx); err != nil {
				break
			}
		}
		if e.rand.Float64() > likeThreshold {
			if err := e.call(ctx, func(ctx context.Context) error { return e.d.Publisher.Like(ctx, it.ID) }); err != nil {
				res.Failed++
				e.d.Log.Warn("like failed", logx.String("item", it.ID), logx.Err(err))
				e.backOffIfLimited(ctx, "like", err)
			} else {
				res.Count++
			}
		}
		if e.rand.Float64() > repostThreshold {
			if err := e.call(ctx, func(ctx context.Context) error { return e.d.Publisher.Repost(ctx, it.ID) }); err != nil {
				res.Failed++
				e.d.Log.Warn("repost failed", logx.String("item", it.ID), logx.Err(err))
				e.backOffIfLimited(ctx, "repost", err)
			} else {
				res.Reposted++
			}
		}
	}
	return res
}
