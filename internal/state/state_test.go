package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"chirpbot/internal/storage"
	logx "chirpbot/pkg/logx"
)

func TestCategoryStatsStayConsistent(t *testing.T) {
	t.Parallel()

	b := NewFollowBook()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ops := []struct {
		follow   bool
		id, cat  string
		wantErr  error
		hoursOff int
	}{
		{true, "1", "python programming", nil, 0},
		{true, "2", "python programming", nil, 1},
		{true, "3", "cricket fans", nil, 2},
		{true, "1", "python programming", ErrAlreadyFollowing, 3},
		{false, "1", "", nil, 4},
		{false, "1", "", ErrNotFollowing, 5},
		{true, "1", "web development", nil, 6},
		{false, "3", "", nil, 30},
	}
	for i, op := range ops {
		at := base.Add(time.Duration(op.hoursOff) * time.Hour)
		var err error
		if op.follow {
			err = b.AddFollow(FollowRecord{SubjectID: op.id, Category: op.cat, FollowedAt: at}, time.UTC)
		} else {
			err = b.MarkUnfollowed(op.id, at, time.UTC)
		}
		if !errors.Is(err, op.wantErr) {
			t.Fatalf("op %d: err = %v, want %v", i, err, op.wantErr)
		}
		for cat, cs := range b.Categories {
			if cs.CurrentlyFollowing+cs.Unfollowed != cs.TotalFollowed {
				t.Fatalf("op %d: category %q inconsistent: %+v", i, cat, cs)
			}
		}
	}

	want := map[string]CategoryStat{
		"python programming": {TotalFollowed: 2, CurrentlyFollowing: 1, Unfollowed: 1},
		"cricket fans":       {TotalFollowed: 1, CurrentlyFollowing: 0, Unfollowed: 1},
		"web development":    {TotalFollowed: 1, CurrentlyFollowing: 1, Unfollowed: 0},
	}
	if diff := cmp.Diff(want, b.Categories); diff != "" {
		t.Fatalf("categories (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]DayStat{
		"2026-03-01": {Followed: 4, Unfollowed: 1},
		"2026-03-02": {Unfollowed: 1},
	}, b.Daily); diff != "" {
		t.Fatalf("daily (-want +got):\n%s", diff)
	}
	if got := b.Totals(); got != (Totals{TotalFollowed: 4, CurrentlyFollowing: 2, TotalUnfollowed: 2}) {
		t.Fatalf("totals = %+v", got)
	}
	if len(b.Records) != 4 {
		t.Fatalf("records must be append-only, got %d", len(b.Records))
	}
}

func TestDueForUnfollow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	b := NewFollowBook()
	_ = b.AddFollow(FollowRecord{SubjectID: "old", FollowedAt: now.AddDate(0, 0, -8)}, time.UTC)
	_ = b.AddFollow(FollowRecord{SubjectID: "new", FollowedAt: now.AddDate(0, 0, -3)}, time.UTC)

	due := b.DueForUnfollow(now, 7*24*time.Hour)
	if len(due) != 1 || due[0].SubjectID != "old" {
		t.Fatalf("due = %+v", due)
	}
}

func TestNewTweetRecordCapsTrending(t *testing.T) {
	t.Parallel()

	rec := NewTweetRecord("hi", "humor", "42", []string{"#a", "#b", "#c", "#d"}, false, time.Now())
	if diff := cmp.Diff([]string{"#a", "#b", "#c"}, rec.TrendingTopicsUsed); diff != "" {
		t.Fatalf("trending (-want +got):\n%s", diff)
	}
}

func TestRepoDefaultsOnCorruptDocument(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mem := storage.NewMemory()
	_ = mem.Save(ctx, KeyBotState, []byte("{not json"))
	repo := NewRepo(mem, logx.Nop())

	st := repo.BotState(ctx)
	if st.CricketMode != nil || len(st.NextFire) != 0 {
		t.Fatalf("expected default state, got %+v", st)
	}

	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := repo.UpdateBotState(ctx, func(s *BotState) error {
		s.NextFire["post"] = at
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := repo.BotState(ctx).NextFire["post"]; !got.Equal(at) {
		t.Fatalf("next fire = %v", got)
	}
	if raw, err := mem.Load(ctx, KeyBotState+".corrupt"); err != nil || string(raw) != "{not json" {
		t.Fatalf("corrupt copy = %q, %v", raw, err)
	}
}

func TestTweetsNewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := NewRepo(storage.NewMemory(), logx.Nop())
	for i, text := range []string{"first", "second"} {
		rec := NewTweetRecord(text, "general", "", nil, false, time.Unix(int64(i), 0))
		if err := repo.AppendTweet(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}
	got := repo.Tweets(ctx)
	if len(got) != 2 || got[0].Text != "second" || got[1].Text != "first" {
		t.Fatalf("tweets = %+v", got)
	}
}
