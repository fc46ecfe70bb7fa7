package xapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"chirpbot/internal/social"
	logx "chirpbot/pkg/logx"
)

func newTestClient(ts *httptest.Server) *Client {
	c := New(Credentials{ConsumerKey: "ck", ConsumerSecret: "cs", AccessToken: "at", AccessSecret: "as", BearerToken: "bt"},
		Options{BaseURL: ts.URL, RatePerSec: 1000, Burst: 100, MaxAttempts: 3, BaseBackoff: time.Millisecond}, nil, logx.Nop())
	c.httpClient = ts.Client()
	return c
}

func TestPublishSignsAndReturnsID(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/tweets" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "OAuth ") {
			t.Errorf("write not OAuth signed: %q", r.Header.Get("Authorization"))
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["text"] != "hello" {
			t.Errorf("body = %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"123","text":"hello"}}`))
	}))
	defer ts.Close()

	id, err := newTestClient(ts).Publish(context.Background(), "hello")
	if err != nil || id != "123" {
		t.Fatalf("Publish = %q, %v", id, err)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status   int
		want     error
		attempts int32
	}{
		{http.StatusForbidden, social.ErrPermissionDenied, 1},
		{http.StatusUnauthorized, social.ErrPermissionDenied, 1},
		{http.StatusTooManyRequests, social.ErrRateLimited, 1},
		{http.StatusBadGateway, nil, 3},
	}
	for _, tt := range tests {
		var hits atomic.Int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(`{"title":"nope"}`))
		}))
		_, err := newTestClient(ts).Publish(context.Background(), "x")
		ts.Close()

		var apiErr *social.APIError
		if !errors.As(err, &apiErr) || apiErr.Status != tt.status {
			t.Fatalf("status %d: err = %v", tt.status, err)
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Fatalf("status %d: err = %v, want %v", tt.status, err, tt.want)
		}
		if got := hits.Load(); got != tt.attempts {
			t.Fatalf("status %d: attempts = %d, want %d", tt.status, got, tt.attempts)
		}
	}
}

func TestRetryThenSuccess(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"id":"9"}}`))
	}))
	defer ts.Close()

	id, err := newTestClient(ts).Publish(context.Background(), "x")
	if err != nil || id != "9" || hits.Load() != 2 {
		t.Fatalf("id=%q err=%v hits=%d", id, err, hits.Load())
	}
}

func TestFollowResolvesSelfOnce(t *testing.T) {
	t.Parallel()

	var meCalls atomic.Int32
	var (
		mu    sync.Mutex
		paths []string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/me" {
			meCalls.Add(1)
			_, _ = w.Write([]byte(`{"data":{"id":"42"}}`))
			return
		}
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer ts.Close()

	c := newTestClient(ts)
	ctx := context.Background()
	if err := c.Follow(ctx, "7"); err != nil {
		t.Fatal(err)
	}
	if err := c.Unfollow(ctx, "7"); err != nil {
		t.Fatal(err)
	}
	if err := c.Like(ctx, "99"); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	want := []string{"POST /users/42/following", "DELETE /users/42/following/7", "POST /users/42/likes"}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Fatalf("paths (-want +got):\n%s", diff)
	}
	if meCalls.Load() != 1 {
		t.Fatalf("users/me called %d times", meCalls.Load())
	}
}

func TestSearchSubjectsDedupesAuthors(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer bt" {
			t.Errorf("read should use bearer token")
		}
		if q := r.URL.Query().Get("query"); q != "cricket fans -is:retweet" {
			t.Errorf("query = %q", q)
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"1","text":"a","author_id":"u1"}],
			"includes":{"users":[{"id":"u1","username":"one"},{"id":"u1","username":"one"},{"id":"u2","username":"two"},{"id":"u3","username":"three"}]}}`))
	}))
	defer ts.Close()

	got, err := newTestClient(ts).SearchSubjects(context.Background(), "cricket fans", 2)
	if err != nil {
		t.Fatal(err)
	}
	want := []social.Subject{{ID: "u1", Handle: "one"}, {ID: "u2", Handle: "two"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("subjects (-want +got):\n%s", diff)
	}
}

func TestSignatureMatchesReferenceVector(t *testing.T) {
	t.Parallel()

	u, _ := url.Parse("https://api.twitter.com/1.1/statuses/update.json")
	params := url.Values{
		"include_entities": {"true"},
		"status":           {"Hello Ladies + Gentlemen, a signed OAuth request!"},
	}
	oauth := map[string]string{
		"oauth_consumer_key":     "xvz1evFS4wEEPTGEFPHBog",
		"oauth_nonce":            "kYjzVBB8Y0ZFabxSWbWovY3uYSQ2pTgmZeNu2VS4cg",
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        "1318622958",
		"oauth_token":            "370773112-GmHxMAgYyLbNEtIKZeRNFsMKPR9EyMZeS9weJAEb",
		"oauth_version":          "1.0",
	}
	got := signature("POST", u, params, oauth, "kAcSOqF21Fu85e7zjz7ZN2U4ZRhfV3WpwPAoE3Z7kBw", "LswwdoUaIvS8ltyTt5jkRh4J50vUPVVHtR2YPi5kE")
	if got != "hCtSmYh+iHYCEqBWrE7C7hYmtUk=" {
		t.Fatalf("signature = %q", got)
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"30", 30 * time.Second},
		{"junk", 0},
		{now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in, now); got != tt.want {
			t.Fatalf("parseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
