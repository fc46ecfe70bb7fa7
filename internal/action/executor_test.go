package action

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"chirpbot/internal/mode"
	"chirpbot/internal/quota"
	"chirpbot/internal/social"
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

// fixedRand returns floats from a cycling list and zero for integers.
type fixedRand struct {
	mu     sync.Mutex
	floats []float64
	i      int
}

func (r *fixedRand) IntN(int) int       { return 0 }
func (r *fixedRand) Int64N(int64) int64 { return 0 }
func (r *fixedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.floats) == 0 {
		return 0
	}
	f := r.floats[r.i%len(r.floats)]
	r.i++
	return f
}

type fakePublisher struct {
	mu          sync.Mutex
	trending    []string
	subjects    []social.Subject
	content     []social.ContentItem
	publishErr  error
	followErr   map[string]error
	unfollowErr map[string]error
	published   []string
	followed    []string
	unfollowed  []string
	liked       []string
	reposted    []string
	searches    int
}

func (p *fakePublisher) Publish(_ context.Context, text string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.publishErr != nil {
		return "", p.publishErr
	}
	p.published = append(p.published, text)
	return fmt.Sprintf("id-%d", len(p.published)), nil
}

func (p *fakePublisher) Follow(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.followed = append(p.followed, id)
	return p.followErr[id]
}

func (p *fakePublisher) Unfollow(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.unfollowErr[id]; err != nil {
		return err
	}
	p.unfollowed = append(p.unfollowed, id)
	return nil
}

func (p *fakePublisher) SearchSubjects(_ context.Context, _ string, limit int) ([]social.Subject, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.searches++
	return p.subjects[:min(limit, len(p.subjects))], nil
}

func (p *fakePublisher) SearchContent(_ context.Context, _ string, limit int) ([]social.ContentItem, error) {
	return p.content[:min(limit, len(p.content))], nil
}

func (p *fakePublisher) TrendingTags(context.Context, int) ([]string, error) { return p.trending, nil }

func (p *fakePublisher) Like(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.liked = append(p.liked, id)
	return nil
}

func (p *fakePublisher) Repost(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reposted = append(p.reposted, id)
	return nil
}

type fakeGenerator struct {
	mu    sync.Mutex
	text  string
	err   error
	calls []social.GenerateRequest
}

func (g *fakeGenerator) Generate(_ context.Context, req social.GenerateRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	return g.text, g.err
}

type harness struct {
	exec   *Executor
	repo   *state.Repo
	quota  *quota.Tracker
	pub    *fakePublisher
	gen    *fakeGenerator
	clock  *clock
	store  *storage.Memory
	sleeps []time.Duration
	mu     sync.Mutex
}

func newHarness(t *testing.T, maxFollows int) *harness {
	t.Helper()
	h := &harness{
		pub:   &fakePublisher{},
		gen:   &fakeGenerator{text: "hello world"},
		clock: &clock{t: time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)},
		store: storage.NewMemory(),
	}
	h.repo = state.NewRepo(h.store, logx.Nop())
	h.quota = quota.New(h.repo, maxFollows, 1500*time.Second, logx.Nop(), quota.WithClock(h.clock.Now), quota.WithLocation(time.UTC))
	h.exec = New(Deps{
		Repo:      h.repo,
		Quota:     h.quota,
		Publisher: h.pub,
		Generator: h.gen,
		Log:       logx.Nop(),
	}, Options{
		MaxPostLength:     280,
		RateLimitCooldown: time.Minute,
		UnfollowAfter:     7 * 24 * time.Hour,
		Location:          time.UTC,
	},
		WithClock(h.clock.Now),
		WithRand(&fixedRand{}),
		WithSleep(func(_ context.Context, d time.Duration) error {
			h.mu.Lock()
			h.sleeps = append(h.sleeps, d)
			h.mu.Unlock()
			return nil
		}),
	)
	return h
}

func TestPostCooldownSkipsSecondCall(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 50)
	ctx := context.Background()

	first := h.exec.Post(ctx, mode.General{}, PostRequest{Category: "general"})
	h.clock.Advance(10 * time.Minute)
	second := h.exec.Post(ctx, mode.General{}, PostRequest{Category: "general"})

	if first.Status != StatusSuccess || second.Status != StatusSkipped {
		t.Fatalf("statuses = %s, %s", first.Status, second.Status)
	}
	if len(h.gen.calls) != 1 || len(h.pub.published) != 1 {
		t.Fatalf("generator calls = %d, publishes = %d", len(h.gen.calls), len(h.pub.published))
	}
	if got := h.repo.Tweets(ctx); len(got) != 1 || got[0].ExternalID != "id-1" {
		t.Fatalf("tweets = %+v", got)
	}

	h.clock.Advance(15 * time.Minute)
	if r := h.exec.Post(ctx, mode.General{}, PostRequest{Category: "general"}); r.Status != StatusSuccess {
		t.Fatalf("post after cooldown = %+v", r)
	}
}

func TestPostConcurrentCallsYieldOneSuccess(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 50)

	results := make(chan Result, 2)
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- h.exec.Post(context.Background(), mode.General{}, PostRequest{Category: "humor"})
		}()
	}
	wg.Wait()
	close(results)

	counts := map[Status]int{}
	for r := range results {
		counts[r.Status]++
	}
	if diff := cmp.Diff(map[Status]int{StatusSuccess: 1, StatusSkipped: 1}, counts); diff != "" {
		t.Fatalf("statuses (-want +got):\n%s", diff)
	}
}

func TestPostForceBypassesCooldown(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 50)
	ctx := context.Background()

	h.exec.Post(ctx, mode.General{}, PostRequest{Category: "general"})
	if r := h.exec.Post(ctx, mode.General{}, PostRequest{Category: "general", Force: true}); r.Status != StatusSuccess {
		t.Fatalf("forced post = %+v", r)
	}
}

func TestPostTruncatesLongText(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 50)
	h.gen.text = strings.Repeat("a", 300)

	r := h.exec.Post(context.Background(), mode.General{}, PostRequest{Category: "general"})
	if r.Status != StatusSuccess {
		t.Fatalf("post = %+v", r)
	}
	sent := h.pub.published[0]
	if len([]rune(sent)) != 280 || !strings.HasSuffix(sent, "...") {
		t.Fatalf("sent %d chars ending %q", len([]rune(sent)), sent[len(sent)-5:])
	}
	if r.Tweet.Text != sent {
		t.Fatalf("stored text differs from sent text")
	}
}

func TestPostFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		genText    string
		genErr     error
		publishErr error
		wantKind   Kind
		wantSleep  bool
	}{
		{name: "empty generation", wantKind: KindNoContent},
		{name: "generator timeout", genErr: context.DeadlineExceeded, wantKind: KindTransientNetwork},
		{name: "forbidden", genText: "x", publishErr: &social.APIError{Op: "publish", Status: http.StatusForbidden}, wantKind: KindPermissionDenied},
		{name: "rate limited", genText: "x", publishErr: &social.APIError{Op: "publish", Status: http.StatusTooManyRequests}, wantKind: KindRateLimited, wantSleep: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, 50)
			h.gen.text, h.gen.err = tt.genText, tt.genErr
			h.pub.publishErr = tt.publishErr

			r := h.exec.Post(context.Background(), mode.General{}, PostRequest{Category: "general"})
			if r.Status != StatusFailure || r.Kind != tt.wantKind {
				t.Fatalf("result = %s/%s, want failure/%s", r.Status, r.Kind, tt.wantKind)
			}
			if got := len(h.sleeps) > 0 && h.sleeps[0] == time.Minute; got != tt.wantSleep {
				t.Fatalf("cooldown sleep = %v, want %v (sleeps %v)", got, tt.wantSleep, h.sleeps)
			}
			if h.quota.PostWait(context.Background()) != 0 {
				t.Fatalf("failed post started the cooldown")
			}
			if n := len(h.repo.Tweets(context.Background())); n != 0 {
				t.Fatalf("failed post stored %d tweets", n)
			}
		})
	}
}

func TestPostCricketUsesCricketTags(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 50)
	h.pub.trending = []string{"#Budget2026", "#INDvAUS", "#T20WorldCup", "#Monday"}

	r := h.exec.Post(context.Background(), mode.Cricket{}, PostRequest{Category: "cricket_news"})
	if r.Status != StatusSuccess {
		t.Fatalf("post = %+v", r)
	}
	req := h.gen.calls[0]
	if diff := cmp.Diff([]string{"#INDvAUS", "#T20WorldCup"}, req.Hashtags); diff != "" {
		t.Fatalf("hashtags (-want +got):\n%s", diff)
	}
	if !req.Cricket || !r.Tweet.CricketMode {
		t.Fatalf("cricket flag not propagated")
	}
	if diff := cmp.Diff([]string{"#INDvAUS", "#T20WorldCup"}, r.Tweet.TrendingTopicsUsed); diff != "" {
		t.Fatalf("trending used (-want +got):\n%s", diff)
	}
}

func TestFollowRespectsDailyQuota(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 2)
	ctx := context.Background()
	h.pub.subjects = []social.Subject{{ID: "a", Handle: "a"}, {ID: "b", Handle: "b"}, {ID: "c", Handle: "c"}, {ID: "d"}, {ID: "e"}}

	r := h.exec.Follow(ctx, mode.General{}, "q", 5)
	if r.Status != StatusSuccess || r.Count != 2 {
		t.Fatalf("first batch = %+v", r)
	}
	if diff := cmp.Diff([]string{"a", "b"}, h.pub.followed); diff != "" {
		t.Fatalf("contacted (-want +got):\n%s", diff)
	}
	if got := h.quota.Snapshot(ctx).Followed; got != 2 {
		t.Fatalf("daily count = %d, want 2", got)
	}
	if n := len(h.repo.Follows(ctx).Records); n != 2 {
		t.Fatalf("records = %d, want 2", n)
	}

	r = h.exec.Follow(ctx, mode.General{}, "q", 5)
	if r.Status != StatusSkipped || r.Count != 0 || h.pub.searches != 1 {
		t.Fatalf("second batch = %+v, searches = %d", r, h.pub.searches)
	}

	h.clock.Advance(24 * time.Hour)
	r = h.exec.Follow(ctx, mode.General{}, "q", 5)
	if r.Count != 2 {
		t.Fatalf("after rollover = %+v", r)
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "d"}, h.pub.followed); diff != "" {
		t.Fatalf("contacted after rollover (-want +got):\n%s", diff)
	}
	if got := h.quota.Snapshot(ctx).Followed; got != 2 {
		t.Fatalf("daily count after rollover = %d, want 2", got)
	}
}

func TestFollowStorageFailureDoesNotCountQuota(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 5)
	ctx := context.Background()
	h.pub.subjects = []social.Subject{{ID: "a"}, {ID: "b"}}
	h.store.FailSave = func(key string) error {
		if key == state.KeyFollows {
			return errors.New("disk full")
		}
		return nil
	}

	r := h.exec.Follow(ctx, mode.General{}, "q", 5)
	if r.Status != StatusFailure || r.Kind != KindStorage {
		t.Fatalf("result = %+v", r)
	}
	if got := h.quota.Snapshot(ctx).Followed; got != 0 {
		t.Fatalf("quota counted %d unstored follows", got)
	}
	if len(h.pub.followed) != 1 {
		t.Fatalf("batch continued after storage failure: %v", h.pub.followed)
	}
}

func TestFollowQuotaWriteFailureStopsBatch(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 2)
	ctx := context.Background()
	h.pub.subjects = []social.Subject{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}, {ID: "e"}}
	h.store.FailSave = func(key string) error {
		if key == state.KeyBotState {
			return errors.New("disk full")
		}
		return nil
	}

	r := h.exec.Follow(ctx, mode.General{}, "q", 5)
	if r.Count != 1 || r.Kind != KindStorage {
		t.Fatalf("result = %+v", r)
	}
	if diff := cmp.Diff([]string{"a"}, h.pub.followed); diff != "" {
		t.Fatalf("contacted (-want +got):\n%s", diff)
	}
	if n := len(h.repo.Follows(ctx).Records); n > 2 {
		t.Fatalf("records = %d, exceeds daily cap 2", n)
	}
}

func TestFollowSkipsDuplicateCandidates(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 5)
	ctx := context.Background()
	h.pub.subjects = []social.Subject{{ID: "a"}, {ID: "a"}, {ID: "b"}}

	r := h.exec.Follow(ctx, mode.General{}, "q", 5)
	if r.Status != StatusSuccess || r.Count != 2 || r.Failed != 0 {
		t.Fatalf("result = %+v", r)
	}
	if diff := cmp.Diff([]string{"a", "b"}, h.pub.followed); diff != "" {
		t.Fatalf("contacted (-want +got):\n%s", diff)
	}
}

func TestResultFormatsFields(t *testing.T) {
	t.Parallel()
	r := Result{Action: ActionPost, Status: StatusSuccess, Count: 1}
	if got := fmt.Sprintf("%+v", r); !strings.Contains(got, "Status:success") {
		t.Fatalf("formatted result = %q", got)
	}
	if got := r.ErrText(); got != "" {
		t.Fatalf("ErrText() = %q, want empty", got)
	}
	r = failed(ActionPost, errors.New("boom"))
	if got := r.ErrText(); got != "boom" {
		t.Fatalf("ErrText() = %q, want boom", got)
	}
}

func TestUnfollowSweep(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 50)
	ctx := context.Background()
	now := h.clock.Now()

	seed := []state.FollowRecord{
		{SubjectID: "old", Category: "q", FollowedAt: now.Add(-8 * 24 * time.Hour)},
		{SubjectID: "broken", Category: "q", FollowedAt: now.Add(-9 * 24 * time.Hour)},
		{SubjectID: "old2", Category: "q", FollowedAt: now.Add(-10 * 24 * time.Hour)},
		{SubjectID: "recent", Category: "q", FollowedAt: now.Add(-3 * 24 * time.Hour)},
	}
	err := h.repo.UpdateFollows(ctx, func(b *state.FollowBook) error {
		for _, rec := range seed {
			if err := b.AddFollow(rec, time.UTC); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	h.pub.unfollowErr = map[string]error{"broken": errors.New("connection reset")}

	r := h.exec.UnfollowInactive(ctx)
	if r.Count != 2 || r.Failed != 1 {
		t.Fatalf("sweep = %+v", r)
	}
	book := h.repo.Follows(ctx)
	for _, rec := range book.Records {
		wantUnfollowed := rec.SubjectID == "old" || rec.SubjectID == "old2"
		if rec.Unfollowed != wantUnfollowed {
			t.Fatalf("%s unfollowed = %v, want %v", rec.SubjectID, rec.Unfollowed, wantUnfollowed)
		}
	}
	cs := book.Categories["q"]
	if cs.CurrentlyFollowing+cs.Unfollowed != cs.TotalFollowed || cs.Unfollowed != 2 {
		t.Fatalf("category stats = %+v", cs)
	}
}

func TestEngageProbabilities(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 50)
	h.pub.content = []social.ContentItem{{ID: "1"}, {ID: "2"}}
	// item 1: like (0.6 > 0.5), no repost (0.6 <= 0.7)
	// item 2: no like (0.4), repost (0.9)
	h.exec.rand = &fixedRand{floats: []float64{0.6, 0.6, 0.4, 0.9}}

	r := h.exec.Engage(context.Background(), mode.General{}, "tech news", 5)
	if r.Count != 1 || r.Reposted != 1 {
		t.Fatalf("engage = %+v", r)
	}
	if diff := cmp.Diff([]string{"1"}, h.pub.liked); diff != "" {
		t.Fatalf("liked (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"2"}, h.pub.reposted); diff != "" {
		t.Fatalf("reposted (-want +got):\n%s", diff)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"short", 280, "short"},
		{"abcdefghij", 8, "abcde..."},
		{"héllo wörld", 8, "héllo..."},
		{"abcdef", 2, "ab"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.limit); got != tt.want {
			t.Fatalf("Truncate(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindNone},
		{fmt.Errorf("publish: %w", &social.APIError{Status: 401}), KindPermissionDenied},
		{&social.APIError{Status: 429}, KindRateLimited},
		{&social.APIError{Status: 502}, KindTransientNetwork},
		{&social.APIError{Status: 400}, KindValidation},
		{context.DeadlineExceeded, KindTransientNetwork},
		{errNoContent, KindNoContent},
		{errors.New("boom"), KindUnknown},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Fatalf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
