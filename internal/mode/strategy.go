package mode

import (
	"strings"
	"time"

	"chirpbot/internal/randx"
)

// Strategy is the content-mode variant handed to the executor. It decides
// which category, queries and hashtags an action uses.
type Strategy interface {
	Name() string
	Cricket() bool
	PickCategory(now time.Time, r randx.Rand) string
	FollowQuery(r randx.Rand) string
	EngageQuery(r randx.Rand) string
	// Hashtags picks the tags appended to a post from ranked trending tags.
	Hashtags(trending []string) []string
	// Relevant reports whether a context snippet suits this mode.
	Relevant(text string) bool
}

// General is the default technology and lifestyle mode.
type General struct{}

var (
	generalFollowQueries = []string{"python programming", "web development", "artificial intelligence", "tech startup"}
	generalEngageQueries = []string{"tech news", "programming tips", "web dev", "AI news", "startup life"}

	dayWeights = []randx.Weighted[string]{
		{Value: "tech_news", Weight: 0.30},
		{Value: "inspiration", Weight: 0.30},
		{Value: "humor", Weight: 0.20},
		{Value: "general", Weight: 0.20},
	}
	nightWeights = []randx.Weighted[string]{
		{Value: "tech_news", Weight: 0.25},
		{Value: "inspiration", Weight: 0.35},
		{Value: "general", Weight: 0.25},
		{Value: "humor", Weight: 0.15},
	}
)

func (General) Name() string  { return "general" }
func (General) Cricket() bool { return false }

// PickCategory weights categories by hour; 08:00 through 22:59 counts as day.
func (General) PickCategory(now time.Time, r randx.Rand) string {
	if h := now.Hour(); h >= 8 && h <= 22 {
		return randx.PickWeighted(r, dayWeights)
	}
	return randx.PickWeighted(r, nightWeights)
}

func (General) FollowQuery(r randx.Rand) string { return randx.Pick(r, generalFollowQueries) }
func (General) EngageQuery(r randx.Rand) string { return randx.Pick(r, generalEngageQueries) }

func (General) Hashtags(trending []string) []string {
	return append([]string{}, trending[:min(2, len(trending))]...)
}

func (General) Relevant(string) bool { return true }

// Cricket focuses every action on cricket audiences.
type Cricket struct{}

var (
	CricketCategories    = []string{"match_update", "cricket_stats", "cricket_news", "cricket_history"}
	cricketFollowQueries = []string{"cricket fans", "india cricket fans", "pakistan cricket fans", "cricket analysis", "cricket news"}
	cricketEngageQueries = []string{"india cricket", "pakistan cricket", "ind vs pak", "cricket news", "cricket stats", "ipl", "psl", "world cup cricket"}

	// cricketTagMarkers identify cricket hashtags among trending tags.
	cricketTagMarkers = []string{"cricket", "ipl", "test", "t20", "odi", "worldcup", "ind", "pak"}
	cricketFallback   = []string{"#Cricket", "#CricketTwitter"}

	CricketKeywords = []string{
		"cricket", "ipl", "bcci", "pcb", "t20", "test match", "odi",
		"wicket", "batting", "bowling", "cricinfo", "icc",
		"team india", "pakistan cricket", "ind vs", "pak vs",
		"virat", "kohli", "rohit", "babar", "rizwan", "shaheen",
		"asia cup", "world cup", "psl",
		"bleed blue", "pakistan zindabad", "men in blue", "green shirts",
	}

	// DefaultCricketTrends stand in when the trends collaborator has nothing.
	DefaultCricketTrends = []string{
		"#Cricket", "#CricketTwitter", "#LoveCricket", "#T20WorldCup", "#IPL2024",
		"#INDvPAK", "#TeamIndia", "#PakistanCricket", "#CricketFever", "#WorldCup",
	}
)

func (Cricket) Name() string  { return "cricket" }
func (Cricket) Cricket() bool { return true }

func (Cricket) PickCategory(_ time.Time, r randx.Rand) string { return randx.Pick(r, CricketCategories) }
func (Cricket) FollowQuery(r randx.Rand) string               { return randx.Pick(r, cricketFollowQueries) }
func (Cricket) EngageQuery(r randx.Rand) string               { return randx.Pick(r, cricketEngageQueries) }

// CricketTags keeps cricket-looking tags in their trending order.
func CricketTags(trending []string) []string {
	var out []string
	for _, tag := range trending {
		lower := strings.ToLower(tag)
		for _, m := range cricketTagMarkers {
			if strings.Contains(lower, m) {
				out = append(out, tag)
				break
			}
		}
	}
	return out
}

// Hashtags uses the top two cricket tags, or a fixed pair when none trend.
func (Cricket) Hashtags(trending []string) []string {
	tags := CricketTags(trending)
	if len(tags) == 0 {
		return append([]string{}, cricketFallback...)
	}
	return tags[:min(2, len(tags))]
}

func (Cricket) Relevant(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range CricketKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// For returns the strategy for a mode flag.
func For(cricket bool) Strategy {
	if cricket {
		return Cricket{}
	}
	return General{}
}
