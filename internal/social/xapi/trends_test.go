package xapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	logx "chirpbot/pkg/logx"
)

func TestTrendsMergesLocations(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-rapidapi-key") != "k" {
			t.Errorf("missing key header")
		}
		switch r.URL.Path {
		case "/location/a":
			_, _ = w.Write([]byte(`{"status":"SUCCESS","trending":{"trends":[{"name":"#INDvPAK"},{"name":"$BTC"},{"name":"Virat Kohli"}]}}`))
		case "/location/b":
			_, _ = w.Write([]byte(`{"status":"SUCCESS","trending":{"trends":[{"name":"#INDvPAK"},{"name":"@someone"},{"name":"#PSL"}]}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	tr := NewTrends(ts.URL, "", "k", []string{"a", "b", "missing"}, []string{"#Cricket"}, logx.Nop())
	tr.httpClient = ts.Client()
	got, err := tr.Tags(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"#INDvPAK", "#ViratKohli", "#PSL"}, got); diff != "" {
		t.Fatalf("tags (-want +got):\n%s", diff)
	}
}

func TestTrendsFallback(t *testing.T) {
	t.Parallel()

	tr := NewTrends("", "", "", nil, []string{"#Cricket", "#CricketTwitter", "#IPL"}, logx.Nop())
	got, _ := tr.Tags(context.Background(), 2)
	if diff := cmp.Diff([]string{"#Cricket", "#CricketTwitter"}, got); diff != "" {
		t.Fatalf("fallback (-want +got):\n%s", diff)
	}
}
