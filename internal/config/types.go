package config

// Config is the on-disk configuration. JSON and YAML share this schema.
//
// Durations are Go duration strings ("90s", "30m") or whole days ("7d").
// String secrets may reference the environment as "${NAME}".
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Mode      ModeConfig      `json:"mode"`
	Schedule  ScheduleConfig  `json:"schedule"`
	Limits    LimitsConfig    `json:"limits"`
	X         XConfig         `json:"x"`
	Generator GeneratorConfig `json:"generator"`
	Trends    TrendsConfig    `json:"trends"`
	Feeds     FeedsConfig     `json:"feeds"`
	Telegram  TelegramConfig  `json:"telegram"`
	Dashboard DashboardConfig `json:"dashboard"`
	Notify    NotifyConfig    `json:"notify"`
}

type LoggingConfig struct {
	Level    string              `json:"level"`
	Console  bool                `json:"console"`
	File     LoggingFileConfig   `json:"file"`
	Operator LoggingOperatorConf `json:"operator"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingOperatorConf forwards WARN+ entries to the Telegram owner chat.
type LoggingOperatorConf struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig selects the persistence backend.
//
// Driver: "file" (one JSON document per key under Path) or "sqlite" (Path is
// the database file).
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// ModeConfig seeds the content mode when no persisted state exists.
type ModeConfig struct {
	Cricket bool `json:"cricket"`
}

type ScheduleConfig struct {
	Timezone string `json:"timezone,omitempty"`
	// DailyReset is a cron expression for the quota reset job.
	DailyReset string    `json:"daily_reset,omitempty"`
	Post       JobConfig `json:"post"`
	Follow     JobConfig `json:"follow"`
	Engage     JobConfig `json:"engage"`
	Sweep      JobConfig `json:"sweep"`
}

// JobConfig describes one jittered action family. Enabled is a pointer so an
// omitted field keeps the family default.
type JobConfig struct {
	Enabled         *bool  `json:"enabled,omitempty"`
	Every           string `json:"every,omitempty"`
	Jitter          string `json:"jitter,omitempty"`
	InitialDelayMin string `json:"initial_delay_min,omitempty"`
	InitialDelayMax string `json:"initial_delay_max,omitempty"`
	Timeout         string `json:"timeout,omitempty"`
	Batch           int    `json:"batch,omitempty"`
}

type LimitsConfig struct {
	MaxDailyFollows   int    `json:"max_daily_follows,omitempty"`
	PostCooldown      string `json:"post_cooldown,omitempty"`
	RateLimitCooldown string `json:"rate_limit_cooldown,omitempty"`
	UnfollowAfter     string `json:"unfollow_after,omitempty"`
	MaxPostLength     int    `json:"max_post_length,omitempty"`
	CallTimeout       string `json:"call_timeout,omitempty"`
	ActionPauseMin    string `json:"action_pause_min,omitempty"`
	ActionPauseMax    string `json:"action_pause_max,omitempty"`
	PreGenerateMax    string `json:"pre_generate_max,omitempty"`
}

// XConfig holds credentials for the publishing API. Writes are signed with
// OAuth 1.0a user context; reads use the bearer token.
type XConfig struct {
	BaseURL      string  `json:"base_url,omitempty"`
	APIKey       string  `json:"api_key"`
	APISecret    string  `json:"api_secret"`
	AccessToken  string  `json:"access_token"`
	AccessSecret string  `json:"access_secret"`
	BearerToken  string  `json:"bearer_token"`
	RatePerSec   float64 `json:"rate_per_sec,omitempty"`
	MaxAttempts  int     `json:"max_attempts,omitempty"`
}

type GeneratorConfig struct {
	BaseURL     string  `json:"base_url,omitempty"`
	APIKey      string  `json:"api_key"`
	Model       string  `json:"model,omitempty"`
	Referer     string  `json:"referer,omitempty"`
	Title       string  `json:"title,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type TrendsConfig struct {
	BaseURL     string   `json:"base_url,omitempty"`
	RapidAPIKey string   `json:"rapidapi_key,omitempty"`
	Host        string   `json:"host,omitempty"`
	// Locations are provider location ids; trends from all are merged in order.
	Locations []string `json:"locations,omitempty"`
	Fallback  []string `json:"fallback,omitempty"`
}

// FeedsConfig lists RSS/Atom sources used as generation context. Rule is an
// optional Starlark source defining keep(item) -> bool.
type FeedsConfig struct {
	URLs     []string `json:"urls,omitempty"`
	Rule     string   `json:"rule,omitempty"`
	MaxItems int      `json:"max_items,omitempty"`
}

type TelegramConfig struct {
	Enabled      bool    `json:"enabled"`
	Token        string  `json:"token"`
	PollTimeout  string  `json:"poll_timeout,omitempty"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// OwnerChat receives notifications and forwarded log entries.
	OwnerChat int64 `json:"owner_chat"`
}

// DashboardConfig serves the JSON API and /metrics. A non-loopback Addr
// requires Token unless AllowInsecure is set. Pprof mounts /debug/pprof.
type DashboardConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`
	ReadTimeout   string `json:"read_timeout,omitempty"`
	WriteTimeout  string `json:"write_timeout,omitempty"`
}

// NotifyConfig controls event delivery to the Telegram owner chat.
type NotifyConfig struct {
	Enabled     bool    `json:"enabled"`
	RatePerSec  float64 `json:"rate_per_sec,omitempty"`
	RetryMax    int     `json:"retry_max,omitempty"`
	DedupWindow string  `json:"dedup_window,omitempty"`
}
