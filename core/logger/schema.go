package logger

import "strings"

var levelNames = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

// Status values are folded into this small vocabulary; anything else is kept verbatim.
var statusNames = map[string]string{
	"ok":           "ok",
	"fail":         "fail",
	"error":        "fail",
	"failed":       "fail",
	"skip":         "skip",
	"retry":        "retry",
	"rate_limited": "rate_limited",
	"cancelled":    "cancelled",
}

var outcomeNames = map[string]struct{}{
	"ok":           {},
	"fail":         {},
	"cancelled":    {},
	"rate_limited": {},
}

func normalizeLevel(level string) string {
	if level == "" {
		return "INFO"
	}
	if name, ok := levelNames[strings.ToLower(level)]; ok {
		return name
	}
	return strings.ToUpper(level)
}

func normalizeStatus(status string) string {
	status = strings.ToLower(strings.TrimSpace(status))
	if name, ok := statusNames[status]; ok {
		return name
	}
	return status
}

func normalizeOutcome(outcome string) (string, bool) {
	outcome = strings.ToLower(strings.TrimSpace(outcome))
	_, ok := outcomeNames[outcome]
	return outcome, ok
}

// defaultKeyOrder puts correlation and dialogue fields ahead of the rest.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "update_id", "user_id", "chat_id", "chat_type",
	"handler", "cb_key", "outcome", "duration_ms", "messages", "kb",
	"state", "next_state", "group_id", "thread_id", "media", "endpoint",
	"method", "path", "code", "listen", "mode", "public_url",
	"db", "host", "port", "count", "sessions", "evicted", "payload",
	"username", "lang", "err", "err_code", "cause",
	"retryable", "attempts", "backoff_ms", "http_code",
}
