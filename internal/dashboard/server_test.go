package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"chirpbot/internal/action"
	"chirpbot/internal/control"
	"chirpbot/internal/state"
	logx "chirpbot/pkg/logx"
)

type fakeBackend struct {
	mu       sync.Mutex
	cricket  bool
	tweets   []state.TweetRecord
	book     *state.FollowBook
	next     map[string]*int64
	lastCat  string
	forced   bool
	generate action.Result
}

func (f *fakeBackend) Tweets(_ context.Context, limit int) []state.TweetRecord {
	if limit > 0 && limit < len(f.tweets) {
		return f.tweets[:limit]
	}
	return f.tweets
}
func (f *fakeBackend) Follows(context.Context) *state.FollowBook { return f.book }
func (f *fakeBackend) Cricket() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cricket
}
func (f *fakeBackend) SetMode(_ context.Context, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cricket = on
	return nil
}
func (f *fakeBackend) Generate(_ context.Context, cat string) action.Result {
	f.lastCat = cat
	return f.generate
}
func (f *fakeBackend) PostNow(_ context.Context, cat string) action.Result {
	f.lastCat, f.forced = cat, true
	return action.Result{Action: "post", Status: action.StatusSuccess}
}
func (f *fakeBackend) NextActions(context.Context) map[string]*int64 { return f.next }
func (f *fakeBackend) Status(context.Context) control.Status       { return control.Status{Mode: "general"} }

func newFake() *fakeBackend {
	book := state.NewFollowBook()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	_ = book.AddFollow(state.FollowRecord{SubjectID: "1", Category: "ai", FollowedAt: at}, time.UTC)
	_ = book.AddFollow(state.FollowRecord{SubjectID: "2", Category: "ai", FollowedAt: at}, time.UTC)
	_ = book.MarkUnfollowed("1", at.Add(time.Hour), time.UTC)
	secs := int64(90)
	return &fakeBackend{
		book: book,
		tweets: []state.TweetRecord{
			{Text: "newest", Category: "humor"},
			{Text: "older", Category: "general"},
		},
		next:     map[string]*int64{control.FamilyPost: &secs},
		generate: action.Result{Action: "post", Status: action.StatusSkipped, Reason: "cooldown: 10m0s remaining"},
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestReadEndpoints(t *testing.T) {
	t.Parallel()
	h := New(Config{}, newFake(), nil, logx.Nop()).Handler()

	rec := do(t, h, http.MethodGet, "/api/tweets?limit=1", "")
	var tweets []state.TweetRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &tweets); err != nil {
		t.Fatalf("decode tweets: %v", err)
	}
	if len(tweets) != 1 || tweets[0].Text != "newest" {
		t.Fatalf("tweets = %+v", tweets)
	}

	if rec := do(t, h, http.MethodGet, "/api/tweets?limit=x", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/followers", "")
	var fb followersBody
	if err := json.Unmarshal(rec.Body.Bytes(), &fb); err != nil {
		t.Fatalf("decode followers: %v", err)
	}
	want := state.Totals{TotalFollowed: 2, CurrentlyFollowing: 1, TotalUnfollowed: 1}
	if diff := cmp.Diff(want, fb.Totals); diff != "" {
		t.Fatalf("totals (-want +got):\n%s", diff)
	}

	rec = do(t, h, http.MethodGet, "/api/followers/categories", "")
	var cats map[string]state.CategoryStat
	if err := json.Unmarshal(rec.Body.Bytes(), &cats); err != nil {
		t.Fatalf("decode categories: %v", err)
	}
	if diff := cmp.Diff(state.CategoryStat{TotalFollowed: 2, CurrentlyFollowing: 1, Unfollowed: 1}, cats["ai"]); diff != "" {
		t.Fatalf("category (-want +got):\n%s", diff)
	}

	rec = do(t, h, http.MethodGet, "/api/next-actions", "")
	var next map[string]*int64
	if err := json.Unmarshal(rec.Body.Bytes(), &next); err != nil {
		t.Fatalf("decode next: %v", err)
	}
	if next["next_tweet_seconds"] == nil || *next["next_tweet_seconds"] != 90 {
		t.Fatalf("next tweet = %v", next["next_tweet_seconds"])
	}
	if next["next_follow_seconds"] != nil {
		t.Fatalf("next follow = %v, want null", *next["next_follow_seconds"])
	}
}

func TestModeAndPostEndpoints(t *testing.T) {
	t.Parallel()
	f := newFake()
	h := New(Config{}, f, nil, logx.Nop()).Handler()

	rec := do(t, h, http.MethodPost, "/api/cricket-mode", `{"enabled":true}`)
	if rec.Code != http.StatusOK || !f.Cricket() {
		t.Fatalf("set mode: code=%d cricket=%v", rec.Code, f.Cricket())
	}
	rec = do(t, h, http.MethodGet, "/api/cricket-mode", "")
	if got := strings.TrimSpace(rec.Body.String()); got != `{"enabled":true}` {
		t.Fatalf("get mode = %s", got)
	}
	if rec := do(t, h, http.MethodPost, "/api/cricket-mode", `{`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad body status = %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/generate-tweet", `{"category":"humor"}`)
	var pb postBody
	if err := json.Unmarshal(rec.Body.Bytes(), &pb); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pb.Success || pb.Status != action.StatusSkipped || f.lastCat != "humor" {
		t.Fatalf("generate = %+v, category %q", pb, f.lastCat)
	}

	rec = do(t, h, http.MethodPost, "/api/tweet-now", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &pb); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !pb.Success || !f.forced || f.lastCat != "" {
		t.Fatalf("tweet-now = %+v forced=%v", pb, f.forced)
	}

	if rec := do(t, h, http.MethodGet, "/api/tweet-now", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET tweet-now status = %d", rec.Code)
	}
}

func TestTokenAndMetrics(t *testing.T) {
	t.Parallel()
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("chirpbot_up 1\n")) })
	h := New(Config{Token: "s3cret"}, newFake(), metrics, logx.Nop()).Handler()

	if rec := do(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/tweets", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "chirpbot_up 1") {
		t.Fatalf("metrics: code=%d body=%q", rec.Code, rec.Body.String())
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()
	tests := map[string]bool{
		"127.0.0.1:5000": true,
		"localhost:5000": true,
		"[::1]:5000":     true,
		":5000":          false,
		"0.0.0.0:5000":   false,
	}
	for addr, want := range tests {
		if got := isLoopbackAddr(addr); got != want {
			t.Fatalf("isLoopbackAddr(%q) = %v, want %v", addr, got, want)
		}
	}
}
