package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chirpbot/internal/state"
	"chirpbot/internal/storage"
	logx "chirpbot/pkg/logx"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTracker(t *testing.T, maxDaily int) (*Tracker, *clock, *state.Repo) {
	t.Helper()
	clk := &clock{t: time.Date(2026, 5, 1, 23, 0, 0, 0, time.UTC)}
	repo := state.NewRepo(storage.NewMemory(), logx.Nop())
	return New(repo, maxDaily, 1500*time.Second, logx.Nop(), WithClock(clk.Now), WithLocation(time.UTC)), clk, repo
}

func TestRecordFollowNeverExceedsMax(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tr, _, repo := newTracker(t, 3)

	for i := 1; i <= 3; i++ {
		n, err := tr.RecordFollow(ctx)
		if err != nil || n != i {
			t.Fatalf("follow %d: n=%d err=%v", i, n, err)
		}
	}
	if tr.CanFollowMore(ctx) {
		t.Fatal("expected exhausted")
	}
	if _, err := tr.RecordFollow(ctx); !errors.Is(err, ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}
	if got := repo.BotState(ctx).Quota.DailyFollowCount; got != 3 {
		t.Fatalf("persisted count = %d", got)
	}
}

func TestConcurrentRecordFollow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tr, _, _ := newTracker(t, 10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tr.RecordFollow(ctx); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if ok != 10 || tr.Remaining(ctx) != 0 {
		t.Fatalf("ok=%d remaining=%d", ok, tr.Remaining(ctx))
	}
}

func TestRolloverIsLazyAndPure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tr, clk, repo := newTracker(t, 2)

	_, _ = tr.RecordFollow(ctx)
	_, _ = tr.RecordFollow(ctx)
	if tr.CanFollowMore(ctx) {
		t.Fatal("expected exhausted before midnight")
	}

	clk.Advance(2 * time.Hour) // 01:00 next day
	if !tr.CanFollowMore(ctx) || tr.Remaining(ctx) != 2 {
		t.Fatalf("expected fresh quota after rollover: %+v", tr.Snapshot(ctx))
	}
	// The query did not write anything.
	if q := repo.BotState(ctx).Quota; q.DailyFollowCount != 2 || q.LastResetDate != "2026-05-01" {
		t.Fatalf("query mutated state: %+v", q)
	}

	n, err := tr.RecordFollow(ctx)
	if err != nil || n != 1 {
		t.Fatalf("first follow after rollover: n=%d err=%v", n, err)
	}
	if q := repo.BotState(ctx).Quota; q.DailyFollowCount != 1 || q.LastResetDate != "2026-05-02" {
		t.Fatalf("rollover not persisted: %+v", q)
	}
}

func TestPostWait(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tr, clk, _ := newTracker(t, 1)

	if w := tr.PostWait(ctx); w != 0 {
		t.Fatalf("fresh wait = %v", w)
	}
	if err := tr.RecordPost(ctx, clk.Now()); err != nil {
		t.Fatal(err)
	}
	clk.Advance(1000 * time.Second)
	if w := tr.PostWait(ctx); w != 500*time.Second {
		t.Fatalf("wait = %v", w)
	}
	clk.Advance(500 * time.Second)
	if w := tr.PostWait(ctx); w != 0 {
		t.Fatalf("wait after cooldown = %v", w)
	}
}

func TestReset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tr, _, _ := newTracker(t, 1)

	_, _ = tr.RecordFollow(ctx)
	if err := tr.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if !tr.CanFollowMore(ctx) {
		t.Fatal("reset did not restore capacity")
	}
}
