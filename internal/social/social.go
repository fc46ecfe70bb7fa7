// Package social declares the collaborator contracts the action executor
// depends on and the error taxonomy adapters report through.
package social

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Subject is an account that can be followed.
type Subject struct {
	ID     string `json:"id"`
	Handle string `json:"handle"`
	Name   string `json:"name,omitempty"`
}

// ContentItem is a post returned by content search.
type ContentItem struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Publisher is the social network as the executor sees it.
type Publisher interface {
	Publish(ctx context.Context, text string) (id string, err error)
	Follow(ctx context.Context, subjectID string) error
	Unfollow(ctx context.Context, subjectID string) error
	SearchSubjects(ctx context.Context, query string, limit int) ([]Subject, error)
	SearchContent(ctx context.Context, query string, limit int) ([]ContentItem, error)
	TrendingTags(ctx context.Context, limit int) ([]string, error)
	Like(ctx context.Context, itemID string) error
	Repost(ctx context.Context, itemID string) error
}

// GenerateRequest describes one post to generate.
type GenerateRequest struct {
	Category string
	Context  string
	// TrendingTags are ranked tags relevant to the current mode.
	TrendingTags []string
	// Hashtags are appended to the generated text on their own line.
	Hashtags []string
	Cricket  bool
}

// ContentGenerator produces post text. An empty string with a nil error
// means the model produced nothing usable.
type ContentGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// ContextSource supplies short background text for generation. keep filters
// candidate snippets.
type ContextSource interface {
	Context(ctx context.Context, keep func(text string) bool) (string, error)
}

var (
	ErrPermissionDenied = errors.New("social: permission denied")
	ErrRateLimited      = errors.New("social: rate limited")
	ErrInvalidResponse  = errors.New("social: invalid response")
)

// APIError is a non-success HTTP response from a collaborator.
type APIError struct {
	Op         string
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
}

// Unwrap maps the status onto the shared taxonomy so errors.Is works.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return ErrPermissionDenied
	case e.Status == http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

// Temporary reports whether retrying later may succeed.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}
