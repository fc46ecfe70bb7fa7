package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"chirpbot/internal/action"
	"chirpbot/internal/eventbus"
	"chirpbot/internal/state"
	logx "chirpbot/pkg/logx"
)

type recordingSender struct {
	mu    sync.Mutex
	fails int
	texts []string
}

func (r *recordingSender) Notify(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fails > 0 {
		r.fails--
		return errors.New("telegram: 502")
	}
	r.texts = append(r.texts, text)
	return nil
}

func (r *recordingSender) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

func TestFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ev     eventbus.Event
		want   string
		wantOK bool
	}{
		{eventbus.Event{Type: eventbus.TypeModeChanged, Data: true}, "Cricket mode enabled", true},
		{eventbus.Event{Type: eventbus.TypePostPublished, Data: action.Result{Tweet: &state.TweetRecord{Category: "humor", Text: "hi"}}}, "Posted [humor]:\nhi", true},
		{eventbus.Event{Type: eventbus.TypePostFailed, Data: action.Result{Kind: action.KindRateLimited, Reason: "publish: 429"}}, "Post failed (rate_limited): publish: 429", true},
		{eventbus.Event{Type: eventbus.TypeFollowBatch, Data: action.Result{Status: action.StatusSuccess, Count: 3, Failed: 1}}, "Followed 3 accounts (1 failed)", true},
		{eventbus.Event{Type: eventbus.TypeSweepDone, Data: action.Result{Status: action.StatusSuccess}}, "", false},
		{eventbus.Event{Type: eventbus.TypePostSkipped, Data: action.Result{}}, "", false},
		{eventbus.Event{Type: eventbus.TypeQuotaReset}, "", false},
	}
	for _, tt := range tests {
		got, ok := Format(tt.ev)
		if got != tt.want || ok != tt.wantOK {
			t.Fatalf("Format(%s) = %q, %v; want %q, %v", tt.ev.Type, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestRunDeliversWithRetryAndDedup(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	sender := &recordingSender{fails: 1}
	svc := New(Config{RatePerSec: 100, RetryMax: 2, RetryBase: time.Millisecond}, sender, bus, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = svc.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// Wait for the subscription before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		bus.Publish(eventbus.Event{Type: eventbus.TypeModeChanged, Data: true})
		if len(sender.got()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	bus.Publish(eventbus.Event{Type: eventbus.TypeModeChanged, Data: false})

	for time.Now().Before(deadline) {
		if len(sender.got()) >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	if diff := cmp.Diff([]string{"Cricket mode enabled", "Cricket mode disabled"}, sender.got()); diff != "" {
		t.Fatalf("delivered (-want +got):\n%s", diff)
	}
	if n := len(svc.History()); n != 2 {
		t.Fatalf("history = %d, want 2", n)
	}
}
