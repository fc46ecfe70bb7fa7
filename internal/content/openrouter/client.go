// Package openrouter generates post text through the OpenRouter chat
// completions API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"chirpbot/internal/social"
	logx "chirpbot/pkg/logx"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "qwen/qwen2.5-vl-72b-instruct:free"
)

// HTTPDoer is the subset of *http.Client the generator needs.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	Referer     string
	Title       string
	Temperature float64
}

// Generator implements social.ContentGenerator.
type Generator struct {
	opts       Options
	httpClient HTTPDoer
	limiter    *rate.Limiter
	log        logx.Logger
}

var _ social.ContentGenerator = (*Generator)(nil)

func New(opts Options, log logx.Logger) *Generator {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Temperature <= 0 {
		opts.Temperature = 0.7
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Generator{
		opts:       opts,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(2*time.Second), 1),
		log:        log.With(logx.Component("openrouter")),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model             string        `json:"model"`
	Messages          []chatMessage `json:"messages"`
	TopP              float64       `json:"top_p"`
	Temperature       float64       `json:"temperature"`
	RepetitionPenalty float64       `json:"repetition_penalty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate returns cleaned text with req.Hashtags appended. An empty model
// answer yields "" and a nil error.
func (g *Generator) Generate(ctx context.Context, req social.GenerateRequest) (string, error) {
	if g.opts.APIKey == "" {
		return "", errors.New("openrouter: api key not configured")
	}
	system, user := BuildPrompt(req)
	body, err := json.Marshal(chatRequest{
		Model:             g.opts.Model,
		Messages:          []chatMessage{{Role: "system", Content: system}, {Role: "user", Content: user}},
		TopP:              1,
		Temperature:       g.opts.Temperature,
		RepetitionPenalty: 1.1,
	})
	if err != nil {
		return "", err
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.opts.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	hreq.Header.Set("Authorization", "Bearer "+g.opts.APIKey)
	hreq.Header.Set("Content-Type", "application/json")
	if g.opts.Referer != "" {
		hreq.Header.Set("HTTP-Referer", g.opts.Referer)
	}
	if g.opts.Title != "" {
		hreq.Header.Set("X-Title", g.opts.Title)
	}

	start := time.Now()
	resp, err := g.httpClient.Do(hreq)
	if err != nil {
		return "", fmt.Errorf("openrouter: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("openrouter: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &social.APIError{Op: "generate", Status: resp.StatusCode, Body: strings.TrimSpace(string(raw[:min(len(raw), 2048)]))}
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("openrouter: %w: %v", social.ErrInvalidResponse, err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("openrouter: %w: %s", social.ErrInvalidResponse, out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	text := Clean(out.Choices[0].Message.Content)
	g.log.Debug("generated", logx.String("category", req.Category), logx.Int("chars", len(text)), logx.Duration("took", time.Since(start)))
	if text == "" {
		return "", nil
	}
	return WithHashtags(text, req.Hashtags), nil
}
