package action

import (
	"context"
	"errors"
	"fmt"

	"chirpbot/internal/eventbus"
	"chirpbot/internal/mode"
	"chirpbot/internal/quota"
	"chirpbot/internal/social"
	"chirpbot/internal/state"
	logx "chirpbot/pkg/logx"
)

// Follow follows up to maxCount new subjects found by query. An empty query
// lets the strategy pick one. Capacity is checked before the search and
// again before every follow; the quota is counted only after the follow is
// stored.
func (e *Executor) Follow(ctx context.Context, strat mode.Strategy, query string, maxCount int) Result {
	start := e.now()
	if query == "" {
		query = strat.FollowQuery(e.rand)
	}
	r := e.follow(ctx, query, maxCount)
	if r.Status != StatusSkipped || r.Count > 0 {
		e.d.Bus.Publish(eventbus.Event{Type: eventbus.TypeFollowBatch, Data: r})
	}
	return e.finish(ctx, r, start, query)
}

func (e *Executor) follow(ctx context.Context, query string, maxCount int) Result {
	if maxCount <= 0 {
		return skipped(ActionFollow, "batch size is zero")
	}
	if !e.d.Quota.CanFollowMore(ctx) {
		return skipped(ActionFollow, "daily follow limit reached")
	}

	var candidates []social.Subject
	err := e.call(ctx, func(ctx context.Context) (err error) {
		candidates, err = e.d.Publisher.SearchSubjects(ctx, query, maxCount)
		return err
	})
	if err != nil {
		e.backOffIfLimited(ctx, "search", err)
		return failed(ActionFollow, fmt.Errorf("search: %w", err))
	}

	book := e.d.Repo.Follows(ctx)
	res := Result{Action: ActionFollow}
	var lastErr error
	attempted := 0
	seen := make(map[string]bool, len(candidates))
	for _, subj := range candidates {
		if attempted >= maxCount || ctx.Err() != nil {
			break
		}
		if seen[subj.ID] || book.IsFollowing(subj.ID) {
			continue
		}
		seen[subj.ID] = true
		if !e.d.Quota.CanFollowMore(ctx) {
			e.d.Log.Info("follow quota exhausted mid-batch", logx.Int("followed", res.Count))
			break
		}
		if attempted > 0 {
			if err := e.pause(ctx); err != nil {
				break
			}
		}
		attempted++

		err := e.call(ctx, func(ctx context.Context) error { return e.d.Publisher.Follow(ctx, subj.ID) })
		if err != nil {
			res.Failed++
			lastErr = err
			e.d.Log.Warn("follow failed", logx.String("subject", subj.ID), logx.String("kind", string(Classify(err))), logx.Err(err))
			if Classify(err) == KindRateLimited {
				e.backOffIfLimited(ctx, "follow", err)
				break
			}
			continue
		}

		rec := state.FollowRecord{SubjectID: subj.ID, DisplayName: displayName(subj), Category: query, FollowedAt: e.now()}
		if err := e.d.Repo.UpdateFollows(ctx, func(b *state.FollowBook) error { return b.AddFollow(rec, e.opts.Location) }); err != nil {
			// The follow happened but could not be recorded; counting it
			// against the quota would make the two disagree, so stop here.
			lastErr = err
			res.Failed++
			res.Kind = KindStorage
			e.d.Log.Error("storing follow failed", logx.String("subject", subj.ID), logx.Err(err))
			break
		}
		res.Count++
		if _, err := e.d.Quota.RecordFollow(ctx); err != nil {
			// An uncounted follow would let the batch run past the daily cap.
			if !errors.Is(err, quota.ErrExhausted) {
				lastErr = err
				res.Kind = KindStorage
				res.Reason = "recording follow quota: " + err.Error()
				e.d.Log.Error("recording follow quota failed", logx.String("subject", subj.ID), logx.Err(err))
			}
			break
		}
		e.d.Log.Debug("followed", logx.String("subject", subj.ID), logx.String("handle", subj.Handle))
	}

	switch {
	case res.Count > 0:
		res.Status = StatusSuccess
	case lastErr != nil:
		kind := res.Kind
		res = failed(ActionFollow, lastErr)
		if kind != KindNone {
			res.Kind = kind
		}
		res.Failed = attempted
	default:
		res.Status = StatusSkipped
		res.Reason = "no new candidates"
	}
	return res
}

func displayName(s social.Subject) string {
	if s.Name != "" {
		return s.Name
	}
	return s.Handle
}

// UnfollowInactive unfollows every live record older than UnfollowAfter.
// A failing record is counted and the sweep moves on.
func (e *Executor) UnfollowInactive(ctx context.Context) Result {
	start := e.now()
	due := e.d.Repo.Follows(ctx).DueForUnfollow(start, e.opts.UnfollowAfter)
	res := Result{Action: ActionUnfollow, Status: StatusSuccess}
	var lastErr error
	for i, rec := range due {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			if err := e.pause(ctx); err != nil {
				break
			}
		}
		err := e.call(ctx, func(ctx context.Context) error { return e.d.Publisher.Unfollow(ctx, rec.SubjectID) })
		if err != nil {
			res.Failed++
			lastErr = err
			e.d.Log.Warn("unfollow failed", logx.String("subject", rec.SubjectID), logx.String("kind", string(Classify(err))), logx.Err(err))
			e.backOffIfLimited(ctx, "unfollow", err)
			continue
		}
		err = e.d.Repo.UpdateFollows(ctx, func(b *state.FollowBook) error {
			return b.MarkUnfollowed(rec.SubjectID, e.now(), e.opts.Location)
		})
		if err != nil {
			e.d.Log.Error("storing unfollow failed", logx.String("subject", rec.SubjectID), logx.Err(err))
		}
		res.Count++
	}
	if res.Count == 0 && lastErr != nil {
		failedN := res.Failed
		res = failed(ActionUnfollow, lastErr)
		res.Failed = failedN
	}
	if len(due) == 0 {
		res.Reason = "nothing due"
	}
	e.d.Bus.Publish(eventbus.Event{Type: eventbus.TypeSweepDone, Data: res})
	return e.finish(ctx, res, start, "")
}
