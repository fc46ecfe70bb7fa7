package action

import (
	"context"
	"fmt"
	"time"

	"chirpbot/internal/eventbus"
	"chirpbot/internal/mode"
	"chirpbot/internal/randx"
	"chirpbot/internal/social"
	"chirpbot/internal/state"
	logx "chirpbot/pkg/logx"
)

const (
	ellipsis      = "..."
	trendingFetch = 10
)

// PostRequest parameterises Post. An empty Category lets the strategy pick.
type PostRequest struct {
	Category string
	// Force bypasses the cooldown for operator-triggered posts.
	Force bool
	// Pause waits a random PreGenerateMax-bounded delay before generating.
	Pause bool
}

// Truncate cuts text to limit characters, ending with a visible ellipsis.
func Truncate(text string, limit int) string {
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	if limit <= len(ellipsis) {
		return string(r[:limit])
	}
	return string(r[:limit-len(ellipsis)]) + ellipsis
}

// Post generates and publishes one post with the given strategy. A post
// inside the cooldown window is skipped before any collaborator is called.
func (e *Executor) Post(ctx context.Context, strat mode.Strategy, req PostRequest) Result {
	e.postMu.Lock()
	defer e.postMu.Unlock()

	start := e.now()
	if !req.Force {
		if wait := e.d.Quota.PostWait(ctx); wait > 0 {
			r := skipped(ActionPost, fmt.Sprintf("cooldown: %s left", wait.Round(time.Second)))
			e.d.Bus.Publish(eventbus.Event{Type: eventbus.TypePostSkipped, Data: r})
			return e.finish(ctx, r, start, "")
		}
	}

	r := e.post(ctx, strat, req, start)
	switch r.Status {
	case StatusSuccess:
		e.d.Bus.Publish(eventbus.Event{Type: eventbus.TypePostPublished, Data: r})
	case StatusFailure:
		e.d.Bus.Publish(eventbus.Event{Type: eventbus.TypePostFailed, Data: r})
	}
	return e.finish(ctx, r, start, r.category())
}

func (r Result) category() string {
	if r.Tweet == nil {
		return ""
	}
	return r.Tweet.Category
}

func (e *Executor) post(ctx context.Context, strat mode.Strategy, req PostRequest, start time.Time) Result {
	category := req.Category
	if category == "" {
		category = strat.PickCategory(start.In(e.opts.Location), e.rand)
	}

	trending := e.trending(ctx, strat)
	relevant := trending
	if strat.Cricket() {
		relevant = mode.CricketTags(trending)
	}
	greq := social.GenerateRequest{
		Category:     category,
		TrendingTags: relevant,
		Hashtags:     strat.Hashtags(trending),
		Cricket:      strat.Cricket(),
	}
	if e.d.Context != nil {
		err := e.call(ctx, func(ctx context.Context) (err error) {
			greq.Context, err = e.d.Context.Context(ctx, strat.Relevant)
			return err
		})
		if err != nil {
			e.d.Log.Warn("context source failed", logx.Err(err))
		}
	}

	if req.Pause && e.opts.PreGenerateMax > 0 {
		if err := e.sleep(ctx, randx.Between(e.rand, time.Second, e.opts.PreGenerateMax)); err != nil {
			return failed(ActionPost, err)
		}
	}

	var text string
	err := e.call(ctx, func(ctx context.Context) (err error) {
		text, err = e.d.Generator.Generate(ctx, greq)
		return err
	})
	if err != nil {
		return failed(ActionPost, fmt.Errorf("generate: %w", err))
	}
	if text == "" {
		return failed(ActionPost, errNoContent)
	}
	if n := len([]rune(text)); n > e.opts.MaxPostLength {
		e.d.Log.Info("truncating post", logx.Int("chars", n), logx.Int("limit", e.opts.MaxPostLength))
		text = Truncate(text, e.opts.MaxPostLength)
	}

	var id string
	err = e.call(ctx, func(ctx context.Context) (err error) {
		id, err = e.d.Publisher.Publish(ctx, text)
		return err
	})
	if err != nil {
		e.backOffIfLimited(ctx, "publish", err)
		return failed(ActionPost, fmt.Errorf("publish: %w", err))
	}

	// The post is live from here on: storage failures are logged, not fatal.
	now := e.now()
	rec := state.NewTweetRecord(text, category, id, relevant, strat.Cricket(), now)
	if err := e.d.Repo.AppendTweet(ctx, rec); err != nil {
		e.d.Log.Error("storing tweet failed", logx.String("kind", string(KindStorage)), logx.String("id", id), logx.Err(err))
	}
	if err := e.d.Quota.RecordPost(ctx, now); err != nil {
		e.d.Log.Error("storing post time failed", logx.String("kind", string(KindStorage)), logx.Err(err))
	}
	return Result{Action: ActionPost, Status: StatusSuccess, Tweet: &rec, Count: 1}
}

// trending returns ranked tags, falling back to the cricket defaults when
// cricket mode has nothing from the collaborator.
func (e *Executor) trending(ctx context.Context, strat mode.Strategy) []string {
	var tags []string
	err := e.call(ctx, func(ctx context.Context) (err error) {
		tags, err = e.d.Publisher.TrendingTags(ctx, trendingFetch)
		return err
	})
	if err != nil {
		e.d.Log.Warn("trending tags unavailable", logx.Err(err))
	}
	if strat.Cricket() && len(mode.CricketTags(tags)) == 0 {
		return append([]string{}, mode.DefaultCricketTrends...)
	}
	return tags
}
