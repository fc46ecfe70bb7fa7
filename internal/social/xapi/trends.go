package xapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"chirpbot/internal/social"
	logx "chirpbot/pkg/logx"
)

const (
	DefaultTrendsBaseURL = "https://twitter-trends-by-location.p.rapidapi.com"
	DefaultTrendsHost    = "twitter-trends-by-location.p.rapidapi.com"
)

// DefaultTrendLocations are India and Pakistan.
var DefaultTrendLocations = []string{"d2c5d61cecd034eb91fda2134a615be1", "d476c7ff73003334ad5a8e9830743ec3"}

// Trends fetches trending tags per location from a RapidAPI provider. When
// the provider is unconfigured or returns nothing, Fallback is used.
type Trends struct {
	BaseURL   string
	Host      string
	Key       string
	Locations []string
	Fallback  []string

	httpClient *http.Client
	limiter    *rate.Limiter
	log        logx.Logger
}

func NewTrends(baseURL, host, key string, locations, fallback []string, log logx.Logger) *Trends {
	if baseURL == "" {
		baseURL = DefaultTrendsBaseURL
	}
	if host == "" {
		host = DefaultTrendsHost
	}
	if len(locations) == 0 {
		locations = DefaultTrendLocations
	}
	return &Trends{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Host:       host,
		Key:        key,
		Locations:  locations,
		Fallback:   fallback,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 2),
		log:        log.With(logx.Component("trends")),
	}
}

// Tags returns up to limit unique hashtags in provider rank order.
func (t *Trends) Tags(ctx context.Context, limit int) ([]string, error) {
	if t.Key == "" {
		return t.fallback(limit), nil
	}
	var all []string
	for _, loc := range t.Locations {
		tags, err := t.location(ctx, loc)
		if err != nil {
			t.log.Warn("trends fetch failed", logx.String("location", loc), logx.Err(err))
			continue
		}
		all = append(all, tags...)
	}
	out := uniqueHashtags(all, limit)
	if len(out) == 0 {
		return t.fallback(limit), nil
	}
	return out, nil
}

func (t *Trends) fallback(limit int) []string {
	return t.Fallback[:min(limit, len(t.Fallback))]
}

func (t *Trends) location(ctx context.Context, id string) ([]string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.BaseURL+"/location/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-rapidapi-key", t.Key)
	req.Header.Set("x-rapidapi-host", t.Host)
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if apiErr := checkResponse("trends", resp); apiErr != nil {
		return nil, apiErr
	}
	defer resp.Body.Close()

	var raw struct {
		Status   string `json:"status"`
		Trending struct {
			Trends []struct {
				Name string `json:"name"`
			} `json:"trends"`
		} `json:"trending"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("trends: %w: %v", social.ErrInvalidResponse, err)
	}
	if raw.Status != "SUCCESS" {
		return nil, fmt.Errorf("trends: %w: status %q", social.ErrInvalidResponse, raw.Status)
	}
	out := make([]string, 0, len(raw.Trending.Trends))
	for _, tr := range raw.Trending.Trends {
		if tag, ok := asHashtag(tr.Name); ok {
			out = append(out, tag)
		}
	}
	return out, nil
}

// asHashtag turns a trend name into a hashtag. Cashtags, mentions and URLs
// are dropped.
func asHashtag(name string) (string, bool) {
	name = strings.TrimSpace(name)
	switch {
	case name == "", strings.HasPrefix(name, "$"), strings.HasPrefix(name, "@"), strings.HasPrefix(name, "http"):
		return "", false
	case strings.HasPrefix(name, "#"):
		return name, len(name) > 1
	default:
		return "#" + strings.ReplaceAll(name, " ", ""), true
	}
}

func uniqueHashtags(in []string, limit int) []string {
	seen := map[string]bool{}
	var out []string
	for _, tag := range in {
		if seen[tag] || len(tag) < 2 {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
		if len(out) == limit {
			break
		}
	}
	return out
}
