package config

import "time"

const (
	DefaultDatabasePath        = "data/ticker_digest.db"
	DefaultWriteTimeout        = 5 * time.Second
	DefaultPollTimeout         = 10 * time.Second
	DefaultDigestHour          = 9
	DefaultDigestMinute        = 0
	DefaultDigestTopN          = 15
	DefaultDigestMaxSamples    = 3
	DefaultDigestPreviewLength = 160
	DefaultDigestTimeout       = 2 * time.Minute
	DefaultMaintenanceSchedule = "0 30 3 * * 0" // Sundays 03:30, seconds field first
)

// defaults registers every key so environment overrides reach Unmarshal.
var defaults = map[string]any{
	"log.level": "info",
	"log.json":  false,

	"database.path":          DefaultDatabasePath,
	"database.write_timeout": DefaultWriteTimeout,

	"telegram.token":         "",
	"telegram.target_chat":   "",
	"telegram.admin_user_id": 0,
	"telegram.poll_timeout":  DefaultPollTimeout,

	"messages.welcome":       "📈 I collect ticker mentions from this chat and post a daily digest. Admins can use /digest and /stats.",
	"messages.unauthorized":  "🚫 Access denied. Please contact the administrator.",
	"messages.general_error": "❌ An error occurred. Please try again later.",
	"messages.stats":         "📊 Stored messages: %d total, %d in the last 24 hours.",

	"digest.hour":            DefaultDigestHour,
	"digest.minute":          DefaultDigestMinute,
	"digest.top_n":           DefaultDigestTopN,
	"digest.max_samples":     DefaultDigestMaxSamples,
	"digest.preview_length":  DefaultDigestPreviewLength,
	"digest.timeout":         DefaultDigestTimeout,
	"digest.extra_stopwords": []string{},

	"scheduler.maintenance_enabled":  true,
	"scheduler.maintenance_schedule": DefaultMaintenanceSchedule,

	"metrics.listen": "",

	"mode": "",
}

// legacyEnv maps keys to the unprefixed variable names older deployments use.
var legacyEnv = map[string]string{
	"telegram.token":       "TELEGRAM_TOKEN",
	"telegram.target_chat": "TARGET_CHAT",
	"digest.hour":          "DIGEST_HOUR",
	"digest.minute":        "DIGEST_MINUTE",
	"mode":                 "MODE",
}
