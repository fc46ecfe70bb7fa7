package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"chirpbot/internal/action"
	"chirpbot/internal/eventbus"
	"chirpbot/internal/schedule"
)

func TestObserveCountsOutcomes(t *testing.T) {
	t.Parallel()
	m := New(Gauges{QuotaRemaining: func() float64 { return 7 }})

	m.Observe(eventbus.Event{Type: eventbus.TypeFollowBatch, Data: action.Result{Action: "follow", Status: action.StatusSuccess, Count: 3, Took: time.Second}})
	m.Observe(eventbus.Event{Type: eventbus.TypePostFailed, Data: action.Result{Action: "post", Status: action.StatusFailure, Kind: action.KindRateLimited}})
	m.Observe(eventbus.Event{Type: eventbus.TypeSweepDone, Data: action.Result{Action: "unfollow", Status: action.StatusSuccess, Count: 2}})
	m.Observe(eventbus.Event{Type: eventbus.TypeJobPanicked, Data: &schedule.PanicError{Job: "post", Value: "boom"}})
	m.Observe(eventbus.Event{Type: eventbus.TypeModeChanged, Data: true})

	if got := testutil.ToFloat64(m.follows); got != 3 {
		t.Fatalf("follows = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.unfollows); got != 2 {
		t.Fatalf("unfollows = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.actionErrors.WithLabelValues("post", "rate_limited")); got != 1 {
		t.Fatalf("post errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.panics.WithLabelValues("post")); got != 1 {
		t.Fatalf("panics = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.modeChanges); got != 1 {
		t.Fatalf("mode changes = %v, want 1", got)
	}
}

func TestHandlerExposesSeries(t *testing.T) {
	t.Parallel()
	m := New(Gauges{
		QuotaRemaining: func() float64 { return 4 },
		Cricket:        func() float64 { return 1 },
	})
	m.Observe(eventbus.Event{Type: eventbus.TypePostPublished, Data: action.Result{Action: "post", Status: action.StatusSuccess}})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`chirpbot_actions_total{action="post",status="success"} 1`,
		"chirpbot_quota_remaining 4",
		"chirpbot_cricket_mode 1",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in body", want)
		}
	}
}
