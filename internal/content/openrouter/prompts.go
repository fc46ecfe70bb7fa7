package openrouter

import (
	"strings"

	"chirpbot/internal/social"
)

const promptTail = "Keep it under 200 characters!"

var cricketPrompts = map[string]string{
	"cricket_stats":   "Share a brief, engaging cricket stat about {topic}. Consider the public reaction in the recent posts. " + promptTail,
	"cricket_history": "Share a quick, exciting cricket moment about {topic}. Connect it with the current public sentiment. " + promptTail,
	"cricket_news":    "Share the latest cricket news about {topic}. Reflect the trending public opinion. " + promptTail,
	"general":         "Share a quick, exciting update about {topic}. Capture the current public mood. " + promptTail,
}

var generalPrompts = map[string]string{
	"inspiration": "Generate a brief inspiring tweet. Keep it under 200 characters.",
	"tech_news":   "Share a quick tech update or innovation. Keep it under 200 characters.",
	"humor":       "Share a light, witty observation. Keep it under 200 characters.",
	"general":     "Share an interesting fact or update. Keep it under 200 characters.",
}

const (
	cricketSystem = "You are a cricket enthusiast creating short, impactful tweets! " +
		"Analyze the recent posts to understand public sentiment. " +
		"Keep tweets concise (under 200 chars), engaging, and focused on the main topic. " +
		"Use minimal emojis (max 2-3) and avoid hashtags in the text. " +
		"Write naturally like a fan sharing exciting cricket news!"
	cricketFallbackSystem = "You are a cricket fan sharing quick updates! Keep tweets concise, " +
		"engaging, and natural. Use minimal emojis and avoid hashtags in the text."
	cricketFallbackPrompt = "Share a quick, exciting cricket update! Focus on recent matches, " +
		"upcoming games, or player performances. " + promptTail
	generalSystem = "You are creating concise, engaging tweets. Keep them under 200 characters, " +
		"use minimal emojis, and write naturally without hashtags in the text."
)

// Topic turns a hashtag into readable prompt text: "#INDvsPAK" becomes
// "IND vs PAK".
func Topic(tag string) string {
	return strings.ReplaceAll(strings.ReplaceAll(tag, "#", ""), "vs", " vs ")
}

// BuildPrompt returns the system and user messages for req.
func BuildPrompt(req social.GenerateRequest) (system, user string) {
	switch {
	case req.Cricket && len(req.TrendingTags) > 0:
		tmpl, ok := cricketPrompts[req.Category]
		if !ok {
			tmpl = cricketPrompts["general"]
		}
		system, user = cricketSystem, strings.ReplaceAll(tmpl, "{topic}", Topic(req.TrendingTags[0]))
	case req.Cricket:
		system, user = cricketFallbackSystem, cricketFallbackPrompt
	default:
		tmpl, ok := generalPrompts[req.Category]
		if !ok {
			tmpl = generalPrompts["general"]
		}
		system, user = generalSystem, tmpl
	}
	if c := strings.TrimSpace(req.Context); c != "" {
		user += " Context: " + c
	}
	return system, user
}

// Clean strips wrapping quotes and doubled spaces from model output.
func Clean(s string) string {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return strings.TrimSpace(s)
}

// WithHashtags puts tags on their own line after text.
func WithHashtags(text string, tags []string) string {
	if len(tags) == 0 {
		return text
	}
	return text + "\n\n" + strings.Join(tags, " ")
}
