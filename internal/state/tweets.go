package state

import "time"

const maxTrendingPerPost = 3

// TweetRecord is one published post. Records are append-only.
type TweetRecord struct {
	Text               string    `json:"text"`
	Category           string    `json:"category"`
	ExternalID         string    `json:"external_id"`
	TrendingTopicsUsed []string  `json:"trending_topics_used"`
	CricketMode        bool      `json:"cricket_mode"`
	CreatedAt          time.Time `json:"created_at"`
}

// NewTweetRecord keeps at most three trending topics in their given order.
func NewTweetRecord(text, category, externalID string, trending []string, cricket bool, at time.Time) TweetRecord {
	n := min(len(trending), maxTrendingPerPost)
	return TweetRecord{
		Text:               text,
		Category:           category,
		ExternalID:         externalID,
		TrendingTopicsUsed: append([]string{}, trending[:n]...),
		CricketMode:        cricket,
		CreatedAt:          at.UTC(),
	}
}
