// Package newsfeed supplies generation context from RSS and Atom feeds.
//
// An optional Starlark rule filters items before the mode filter sees them.
// The rule source must define keep(item), where item has the fields title,
// url, description and categories, and return a bool:
//
//	def keep(item):
//	    return "opinion" not in item.categories
package newsfeed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"

	"chirpbot/internal/randx"
	"chirpbot/internal/social"
	logx "chirpbot/pkg/logx"
)

const (
	defaultMaxItems = 20
	defaultTTL      = 15 * time.Minute
	maxSnippet      = 200
)

// Item is the part of a feed entry the source cares about.
type Item struct {
	Title       string
	URL         string
	Description string
	Categories  []string
}

type cached struct {
	items   []Item
	fetched time.Time
}

// Source implements social.ContextSource.
type Source struct {
	urls     []string
	maxItems int
	ttl      time.Duration
	rule     *starlark.Function

	httpc  *http.Client
	parser *gofeed.Parser
	rand   randx.Rand
	now    func() time.Time
	log    logx.Logger

	mu    sync.Mutex
	cache map[string]cached
}

var _ social.ContextSource = (*Source)(nil)

// New compiles rule (may be empty) and returns a source over urls.
func New(urls []string, rule string, maxItems int, log logx.Logger) (*Source, error) {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	s := &Source{
		urls:     urls,
		maxItems: maxItems,
		ttl:      defaultTTL,
		httpc:    &http.Client{Timeout: 15 * time.Second},
		parser:   gofeed.NewParser(),
		rand:     randx.Default(),
		now:      time.Now,
		log:      log.With(logx.Component("newsfeed")),
		cache:    make(map[string]cached),
	}
	if strings.TrimSpace(rule) != "" {
		fn, err := compileRule(rule, s.log)
		if err != nil {
			return nil, err
		}
		s.rule = fn
	}
	return s, nil
}

func compileRule(src string, log logx.Logger) (*starlark.Function, error) {
	globals, err := starlark.ExecFileOptions(
		&syntax.FileOptions{},
		&starlark.Thread{Print: func(_ *starlark.Thread, msg string) { log.Info(msg) }},
		"rule.star",
		src,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("newsfeed rule: %w", err)
	}
	fn, ok := globals["keep"].(*starlark.Function)
	if !ok {
		return nil, errors.New("newsfeed rule: keep(item) must be defined")
	}
	globals.Freeze()
	return fn, nil
}

// Context returns one title-plus-summary snippet that passes the rule and
// keep, or "" when nothing qualifies. Feed errors are logged and skipped.
func (s *Source) Context(ctx context.Context, keep func(string) bool) (string, error) {
	var candidates []string
	for _, u := range s.urls {
		items, err := s.items(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			s.log.Warn("feed fetch failed", logx.String("feed", u), logx.Err(err))
			continue
		}
		for _, it := range items {
			if s.rule != nil && !s.applyRule(it) {
				continue
			}
			text := snippet(it)
			if text == "" || (keep != nil && !keep(text)) {
				continue
			}
			candidates = append(candidates, text)
		}
	}
	if len(candidates) == 0 {
		return "", nil
	}
	return randx.Pick(s.rand, candidates), nil
}

func (s *Source) items(ctx context.Context, u string) ([]Item, error) {
	s.mu.Lock()
	c, ok := s.cache[u]
	s.mu.Unlock()
	if ok && s.now().Sub(c.fetched) < s.ttl {
		return c.items, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "chirpbot")
	res, err := s.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", res.StatusCode)
	}
	feed, err := s.parser.Parse(res.Body)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, min(len(feed.Items), s.maxItems))
	for _, fi := range feed.Items {
		if len(items) == s.maxItems {
			break
		}
		items = append(items, Item{Title: fi.Title, URL: fi.Link, Description: fi.Description, Categories: fi.Categories})
	}
	s.mu.Lock()
	s.cache[u] = cached{items: items, fetched: s.now()}
	s.mu.Unlock()
	s.log.Debug("fetched feed", logx.String("feed", u), logx.Int("items", len(items)))
	return items, nil
}

func (s *Source) applyRule(it Item) bool {
	categories := make([]starlark.Value, 0, len(it.Categories))
	for _, c := range it.Categories {
		categories = append(categories, starlark.String(c))
	}
	val, err := starlark.Call(
		&starlark.Thread{Print: func(_ *starlark.Thread, msg string) { s.log.Info(msg) }},
		s.rule,
		starlark.Tuple{starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
			"title":       starlark.String(it.Title),
			"url":         starlark.String(it.URL),
			"description": starlark.String(it.Description),
			"categories":  starlark.NewList(categories),
		})},
		nil,
	)
	if err != nil {
		s.log.Warn("applying rule", logx.String("item", it.URL), logx.Err(err))
		return false
	}
	ret, ok := val.(starlark.Bool)
	if !ok {
		s.log.Warn("rule returned non-boolean value", logx.String("item", it.URL))
		return false
	}
	return bool(ret)
}

func snippet(it Item) string {
	text := strings.TrimSpace(it.Title)
	if d := strings.TrimSpace(stripTags(it.Description)); d != "" && d != text {
		text += ": " + d
	}
	if r := []rune(text); len(r) > maxSnippet {
		text = strings.TrimSpace(string(r[:maxSnippet]))
	}
	return text
}

// stripTags drops anything between angle brackets and collapses whitespace.
func stripTags(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>' && depth > 0:
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
