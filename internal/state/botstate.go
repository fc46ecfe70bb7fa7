package state

import "time"

// QuotaState is the daily follow counter. LastResetDate is YYYY-MM-DD in
// the bot's configured location.
type QuotaState struct {
	DailyFollowCount int    `json:"daily_follow_count"`
	LastResetDate    string `json:"last_reset_date"`
}

// BotState is the small flat record shared by the scheduler, the quota
// tracker and the mode controller.
type BotState struct {
	// CricketMode is nil until the mode has been set once.
	CricketMode *bool                `json:"cricket_mode,omitempty"`
	NextFire    map[string]time.Time `json:"next_fire"`
	LastPostAt  time.Time            `json:"last_post_at,omitzero"`
	Quota       QuotaState           `json:"quota"`
}

func NewBotState() *BotState {
	return &BotState{NextFire: map[string]time.Time{}}
}

func (s *BotState) normalize() {
	if s.NextFire == nil {
		s.NextFire = map[string]time.Time{}
	}
}
