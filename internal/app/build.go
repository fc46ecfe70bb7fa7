package app

import (
	"chirpbot/internal/action"
	"chirpbot/internal/config"
	"chirpbot/internal/content/newsfeed"
	"chirpbot/internal/content/openrouter"
	"chirpbot/internal/dashboard"
	"chirpbot/internal/notifier"
	"chirpbot/internal/social/xapi"
	"chirpbot/internal/storage"
	"chirpbot/internal/transport/telegram"
	logx "chirpbot/pkg/logx"
)

func mapStorageConfig(cfg *config.Config, set *config.Settings) storage.Config {
	path := cfg.Storage.Path
	if path == "" {
		path = "./data"
	}
	return storage.Config{Driver: cfg.Storage.Driver, Path: path, BusyTimeout: set.StorageBusyTimeout}
}

func newPublisher(cfg *config.Config, set *config.Settings, log logx.Logger) *xapi.Client {
	trends := xapi.NewTrends(cfg.Trends.BaseURL, cfg.Trends.Host, cfg.Trends.RapidAPIKey,
		cfg.Trends.Locations, cfg.Trends.Fallback, log)
	return xapi.New(xapi.Credentials{
		ConsumerKey:    cfg.X.APIKey,
		ConsumerSecret: cfg.X.APISecret,
		AccessToken:    cfg.X.AccessToken,
		AccessSecret:   cfg.X.AccessSecret,
		BearerToken:    cfg.X.BearerToken,
	}, xapi.Options{
		BaseURL:     cfg.X.BaseURL,
		RatePerSec:  cfg.X.RatePerSec,
		MaxAttempts: cfg.X.MaxAttempts,
		Timeout:     set.CallTimeout,
	}, trends, log)
}

func newGenerator(cfg *config.Config, log logx.Logger) *openrouter.Generator {
	return openrouter.New(openrouter.Options{
		BaseURL:     cfg.Generator.BaseURL,
		APIKey:      cfg.Generator.APIKey,
		Model:       cfg.Generator.Model,
		Referer:     cfg.Generator.Referer,
		Title:       cfg.Generator.Title,
		Temperature: cfg.Generator.Temperature,
	}, log)
}

// newContextSource returns nil when no feeds are configured.
func newContextSource(cfg *config.Config, log logx.Logger) (*newsfeed.Source, error) {
	if len(cfg.Feeds.URLs) == 0 {
		return nil, nil
	}
	return newsfeed.New(cfg.Feeds.URLs, cfg.Feeds.Rule, cfg.Feeds.MaxItems, log)
}

func mapExecutorOptions(set *config.Settings) action.Options {
	return action.Options{
		MaxPostLength:     set.MaxPostLength,
		RateLimitCooldown: set.RateLimitCooldown,
		CallTimeout:       set.CallTimeout,
		UnfollowAfter:     set.UnfollowAfter,
		ActionPauseMin:    set.ActionPauseMin,
		ActionPauseMax:    set.ActionPauseMax,
		PreGenerateMax:    set.PreGenerateMax,
		Location:          set.Location,
	}
}

func mapTelegramConfig(cfg *config.Config, set *config.Settings) telegram.Config {
	return telegram.Config{
		Token:        cfg.Telegram.Token,
		PollTimeout:  set.TelegramPollTimeout,
		OwnerUserIDs: cfg.Telegram.OwnerUserIDs,
		OwnerChat:    cfg.Telegram.OwnerChat,
	}
}

func mapNotifierConfig(cfg *config.Config, set *config.Settings) notifier.Config {
	return notifier.Config{
		RatePerSec:  cfg.Notify.RatePerSec,
		RetryMax:    cfg.Notify.RetryMax,
		DedupWindow: set.NotifyDedup,
	}
}

func mapDashboardConfig(cfg *config.Config, set *config.Settings) dashboard.Config {
	return dashboard.Config{
		Addr:          cfg.Dashboard.Addr,
		Token:         cfg.Dashboard.Token,
		AllowInsecure: cfg.Dashboard.AllowInsecure,
		Pprof:         cfg.Dashboard.Pprof,
		ReadTimeout:   set.DashboardRead,
		WriteTimeout:  set.DashboardWrite,
	}
}
