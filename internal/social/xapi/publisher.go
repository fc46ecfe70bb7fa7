package xapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"chirpbot/internal/social"
)

var _ social.Publisher = (*Client)(nil)

// Publish creates a post and returns its id.
func (c *Client) Publish(ctx context.Context, text string) (string, error) {
	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	err := c.do(ctx, call{op: "publish", method: http.MethodPost, path: "/tweets", body: map[string]string{"text": text}, signed: true}, &out)
	if err != nil {
		return "", err
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("publish: %w: missing id", social.ErrInvalidResponse)
	}
	return out.Data.ID, nil
}

// self resolves and caches the acting account's id.
func (c *Client) self(ctx context.Context) (string, error) {
	c.selfMu.Lock()
	defer c.selfMu.Unlock()
	if c.selfID != "" {
		return c.selfID, nil
	}
	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, call{op: "users.me", method: http.MethodGet, path: "/users/me", signed: true}, &out); err != nil {
		return "", err
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("users.me: %w: missing id", social.ErrInvalidResponse)
	}
	c.selfID = out.Data.ID
	return c.selfID, nil
}

func (c *Client) userAction(ctx context.Context, op, method, pathFmt string, body any, args ...string) error {
	me, err := c.self(ctx)
	if err != nil {
		return err
	}
	escaped := []any{url.PathEscape(me)}
	for _, a := range args {
		escaped = append(escaped, url.PathEscape(a))
	}
	return c.do(ctx, call{op: op, method: method, path: fmt.Sprintf(pathFmt, escaped...), body: body, signed: true}, nil)
}

func (c *Client) Follow(ctx context.Context, subjectID string) error {
	if subjectID == "" {
		return errors.New("follow: empty subject id")
	}
	return c.userAction(ctx, "follow", http.MethodPost, "/users/%s/following", map[string]string{"target_user_id": subjectID})
}

func (c *Client) Unfollow(ctx context.Context, subjectID string) error {
	if subjectID == "" {
		return errors.New("unfollow: empty subject id")
	}
	return c.userAction(ctx, "unfollow", http.MethodDelete, "/users/%s/following/%s", nil, subjectID)
}

func (c *Client) Like(ctx context.Context, itemID string) error {
	return c.userAction(ctx, "like", http.MethodPost, "/users/%s/likes", map[string]string{"tweet_id": itemID})
}

func (c *Client) Repost(ctx context.Context, itemID string) error {
	return c.userAction(ctx, "repost", http.MethodPost, "/users/%s/retweets", map[string]string{"tweet_id": itemID})
}

type searchResponse struct {
	Data []struct {
		ID        string    `json:"id"`
		Text      string    `json:"text"`
		AuthorID  string    `json:"author_id"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Username string `json:"username"`
		} `json:"users"`
	} `json:"includes"`
}

func (c *Client) searchRecent(ctx context.Context, op, query string, limit int) (*searchResponse, error) {
	q := url.Values{}
	q.Set("query", query+" -is:retweet")
	q.Set("max_results", strconv.Itoa(clamp(limit, 10, 100)))
	q.Set("tweet.fields", "created_at,author_id")
	q.Set("expansions", "author_id")
	q.Set("user.fields", "username,name")
	var out searchResponse
	if err := c.do(ctx, call{op: op, method: http.MethodGet, path: "/tweets/search/recent", query: q}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchSubjects returns distinct authors of recent posts matching query.
func (c *Client) SearchSubjects(ctx context.Context, query string, limit int) ([]social.Subject, error) {
	res, err := c.searchRecent(ctx, "search.subjects", query, limit*2)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	out := make([]social.Subject, 0, limit)
	for _, u := range res.Includes.Users {
		if seen[u.ID] || u.ID == "" {
			continue
		}
		seen[u.ID] = true
		out = append(out, social.Subject{ID: u.ID, Handle: u.Username, Name: u.Name})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// SearchContent returns recent posts matching query.
func (c *Client) SearchContent(ctx context.Context, query string, limit int) ([]social.ContentItem, error) {
	res, err := c.searchRecent(ctx, "search.content", query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]social.ContentItem, 0, len(res.Data))
	for _, d := range res.Data {
		out = append(out, social.ContentItem{ID: d.ID, AuthorID: d.AuthorID, Text: d.Text, CreatedAt: d.CreatedAt})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// TrendingTags delegates to the trends provider.
func (c *Client) TrendingTags(ctx context.Context, limit int) ([]string, error) {
	if c.trends == nil {
		return nil, nil
	}
	return c.trends.Tags(ctx, limit)
}
