package logger

import "strings"

var levelNames = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

// Values outside these sets are dropped (outcome) or kept verbatim (status).
var (
	knownStatus  = []string{"ok", "fail", "skip", "retry", "rate_limited", "cancelled"}
	knownOutcome = []string{"ok", "fail", "cancelled", "rate_limited", "stale"}
)

func normalizeLevel(level string) string {
	if level == "" {
		return "INFO"
	}
	if mapped, ok := levelNames[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

func normalizeEnum(value string, known []string) (string, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, k := range known {
		if k == value {
			return value, true
		}
	}
	return value, false
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"cb_key",
	"outcome",
	"duration_ms",
	"messages",
	"kb",
	"run_id",
	"team",
	"stage",
	"question",
	"score",
	"total",
	"penalty_s",
	"sink",
	"payload",
	"username",
	"mode",
	"listen",
	"public_url",
	"http_code",
	"method",
	"path",
	"db",
	"driver",
	"err",
	"err_code",
	"cause",
	"attempts",
}
