package mode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"chirpbot/internal/eventbus"
	"chirpbot/internal/randx"
	"chirpbot/internal/state"
	"chirpbot/internal/storage"
	logx "chirpbot/pkg/logx"
)

func TestControllerPersistsAndSurvivesRestart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mem := storage.NewMemory()
	repo := state.NewRepo(mem, logx.Nop())
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	c := New(ctx, repo, false, bus, logx.Nop())
	if c.Enabled() {
		t.Fatal("default should be off")
	}
	if err := c.Set(ctx, true); err != nil {
		t.Fatal(err)
	}
	if !c.Enabled() || c.Strategy().Name() != "cricket" {
		t.Fatal("cache not updated")
	}
	if p := repo.BotState(ctx).CricketMode; p == nil || !*p {
		t.Fatal("mode not persisted")
	}
	if e := <-events; e.Type != eventbus.TypeModeChanged || e.Data != true {
		t.Fatalf("event = %+v", e)
	}

	// A new controller over the same store ignores the config default.
	c2 := New(ctx, state.NewRepo(mem, logx.Nop()), false, nil, logx.Nop())
	if !c2.Enabled() {
		t.Fatal("persisted mode lost on restart")
	}
}

func TestControllerKeepsModeOnWriteFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mem := storage.NewMemory()
	c := New(ctx, state.NewRepo(mem, logx.Nop()), false, nil, logx.Nop())
	mem.FailSave = func(string) error { return errors.New("disk full") }
	if err := c.Set(ctx, true); err == nil {
		t.Fatal("expected error")
	}
	if c.Enabled() {
		t.Fatal("cache changed despite failed write")
	}
}

func TestCricketHashtags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		trending []string
		want     []string
	}{
		{"ranked", []string{"#Monday", "#INDvsAUS", "#Oscars", "#IPL2026", "#T20"}, []string{"#INDvsAUS", "#IPL2026"}},
		{"single", []string{"#Cricket"}, []string{"#Cricket"}},
		{"fallback", []string{"#Monday", "#Oscars"}, []string{"#Cricket", "#CricketTwitter"}},
		{"empty", nil, []string{"#Cricket", "#CricketTwitter"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, Cricket{}.Hashtags(tt.trending)); diff != "" {
			t.Fatalf("%s (-want +got):\n%s", tt.name, diff)
		}
	}
	if diff := cmp.Diff([]string{"#a", "#b"}, General{}.Hashtags([]string{"#a", "#b", "#c"})); diff != "" {
		t.Fatalf("general (-want +got):\n%s", diff)
	}
}

func TestGeneralCategoriesByHour(t *testing.T) {
	t.Parallel()

	r := randx.Seeded(3)
	valid := map[string]bool{"tech_news": true, "inspiration": true, "humor": true, "general": true}
	for _, h := range []int{2, 8, 15, 22, 23} {
		now := time.Date(2026, 1, 1, h, 0, 0, 0, time.UTC)
		for range 50 {
			if c := (General{}).PickCategory(now, r); !valid[c] {
				t.Fatalf("hour %d: unexpected category %q", h, c)
			}
		}
	}
}

func TestCricketRelevant(t *testing.T) {
	t.Parallel()

	if !(Cricket{}).Relevant("Kohli scores a century in the ODI") {
		t.Fatal("expected relevant")
	}
	if (Cricket{}).Relevant("New JavaScript framework released") {
		t.Fatal("expected irrelevant")
	}
}
