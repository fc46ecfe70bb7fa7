package newsfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	logx "chirpbot/pkg/logx"
)

const testFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>t</title>
<item><title>Kohli hits century</title><link>https://e.com/1</link><description>&lt;p&gt;Big  day&lt;/p&gt;</description><category>sport</category></item>
<item><title>Markets slide</title><link>https://e.com/2</link><description>Stocks fell</description><category>opinion</category></item>
<item><title>New Go release</title><link>https://e.com/3</link><description>Faster builds</description><category>tech</category></item>
</channel></rss>`

func feedServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(testFeed))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestContextFiltersByKeep(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	ts := feedServer(t, &hits)
	s, err := New([]string{ts.URL}, "", 0, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Context(context.Background(), func(text string) bool {
		return strings.Contains(strings.ToLower(text), "kohli")
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "Kohli hits century: Big day" {
		t.Fatalf("Context = %q", got)
	}

	// Second call is served from cache.
	if _, err := s.Context(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 1 {
		t.Fatalf("feed fetched %d times, want 1", hits.Load())
	}
}

func TestContextStarlarkRule(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	ts := feedServer(t, &hits)
	rule := `
def keep(item):
    return "tech" in item.categories
`
	s, err := New([]string{ts.URL}, rule, 0, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Context(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "New Go release: Faster builds" {
		t.Fatalf("Context = %q", got)
	}
}

func TestNewRejectsBadRule(t *testing.T) {
	t.Parallel()

	for _, rule := range []string{"def nope(item):\n    return True\n", "def keep(:"} {
		if _, err := New(nil, rule, 0, logx.Nop()); err == nil {
			t.Fatalf("New(%q) succeeded, want error", rule)
		}
	}
}

func TestContextNothingMatches(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	ts := feedServer(t, &hits)
	s, _ := New([]string{ts.URL, "http://127.0.0.1:1/unreachable"}, "", 0, logx.Nop())
	got, err := s.Context(context.Background(), func(string) bool { return false })
	if err != nil || got != "" {
		t.Fatalf("Context = %q, %v", got, err)
	}
}
