package config

import (
	"hash/fnv"
	"reflect"

	logx "chirpbot/pkg/logx"
)

// Change describes what differs between two committed configs.
type Change struct {
	Sections []string
	// Restart lists sections whose changes only apply after a restart.
	Restart []string
	Fields  []logx.Field
}

// SummarizeConfigChange compares two configs section by section. Secrets are
// never included in Fields.
func SummarizeConfigChange(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var ch Change
	section := func(name string, o, n any, restart bool, fields ...logx.Field) {
		if reflect.DeepEqual(o, n) {
			return
		}
		ch.Sections = append(ch.Sections, name)
		if restart {
			ch.Restart = append(ch.Restart, name)
		}
		ch.Fields = append(ch.Fields, fields...)
	}

	section("logging", oldCfg.Logging, newCfg.Logging, false,
		logx.String("logging.level", newCfg.Logging.Level),
		logx.Bool("logging.file", newCfg.Logging.File.Enabled),
		logx.Bool("logging.operator", newCfg.Logging.Operator.Enabled),
	)
	section("mode", oldCfg.Mode, newCfg.Mode, false, logx.Bool("mode.cricket", newCfg.Mode.Cricket))
	section("schedule", oldCfg.Schedule, newCfg.Schedule, true, logx.String("schedule.timezone", newCfg.Schedule.Timezone))
	section("limits", oldCfg.Limits, newCfg.Limits, true, logx.Int("limits.max_daily_follows", newCfg.Limits.MaxDailyFollows))
	section("storage", oldCfg.Storage, newCfg.Storage, true, logx.String("storage.driver", newCfg.Storage.Driver))
	section("x", oldCfg.X, newCfg.X, true, logx.Bool("x.bearer_set", newCfg.X.BearerToken != ""))
	section("generator", oldCfg.Generator, newCfg.Generator, true, logx.String("generator.model", newCfg.Generator.Model))
	section("trends", oldCfg.Trends, newCfg.Trends, true)
	section("feeds", oldCfg.Feeds, newCfg.Feeds, true, logx.Int("feeds.count", len(newCfg.Feeds.URLs)))
	section("telegram", oldCfg.Telegram, newCfg.Telegram, true, logx.Int("telegram.owner_count", len(newCfg.Telegram.OwnerUserIDs)))
	section("notify", oldCfg.Notify, newCfg.Notify, true, logx.Bool("notify.enabled", newCfg.Notify.Enabled))
	section("dashboard", oldCfg.Dashboard, newCfg.Dashboard, true, logx.String("dashboard.addr", newCfg.Dashboard.Addr))
	return ch
}

func hashBytes(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
