package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeLayout = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	out      *asyncWriter
	errOut   *asyncWriter
	format   logFormat
	keyOrder []string
}

// lineHandler renders each record as one line of flat fields. Nested groups
// become dotted keys and durations become *_ms integers.
type lineHandler struct {
	cfg    handlerConfig
	rank   map[string]int
	attrs  []slog.Attr
	prefix string
}

func newLineHandler(cfg handlerConfig) *lineHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if len(cfg.keyOrder) == 0 {
		cfg.keyOrder = defaultKeyOrder
	}
	rank := make(map[string]int, len(cfg.keyOrder))
	for i, k := range cfg.keyOrder {
		if _, dup := rank[k]; !dup {
			rank[k] = i
		}
	}
	return &lineHandler{cfg: cfg, rank: rank}
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *lineHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.out == nil {
		return fmt.Errorf("logger: writer not initialized")
	}
	f := fields{
		"ts":    r.Time.UTC().Truncate(time.Millisecond).Format(timeLayout),
		"level": normalizeLevel(r.Level.String()),
	}
	for _, a := range h.attrs {
		f.add(h.prefix, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		f.add(h.prefix, a)
		return true
	})
	f.fromContext(ctx)
	f.finish(r.Message, h.cfg.format == formatJSON)

	keys := h.order(f)
	var buf bytes.Buffer
	if h.cfg.format == formatJSON {
		if err := encodeJSON(&buf, keys, f); err != nil {
			return err
		}
	} else {
		encodeKV(&buf, keys, f)
	}
	buf.WriteByte('\n')
	if h.cfg.errOut != nil && r.Level >= slog.LevelError {
		if err := h.cfg.errOut.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	return h.cfg.out.Write(buf.Bytes())
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}

// order puts ranked keys first, then the rest alphabetically.
func (h *lineHandler) order(f fields) []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, iok := h.rank[keys[i]]
		rj, jok := h.rank[keys[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}

type fields map[string]any

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	default:
		return prefix + "." + key
	}
}

func (f fields) add(prefix string, a slog.Attr) {
	key := joinKey(prefix, a.Key)
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			f.add(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if val, ok := plainValue(v); ok {
		if d, isDur := val.(time.Duration); isDur {
			f[msKey(key)] = RoundMS(d).Milliseconds()
			return
		}
		f[key] = val
	}
}

func msKey(key string) string {
	if key == "duration" {
		return "duration_ms"
	}
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}

func plainValue(v slog.Value) (any, bool) {
	switch v.Kind() {
	case slog.KindString:
		s := strings.TrimSpace(v.String())
		return s, s != ""
	case slog.KindBool:
		return v.Bool(), true
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return int64(u), true
		}
		return v.Uint64(), true
	case slog.KindFloat64:
		return v.Float64(), true
	case slog.KindDuration:
		return v.Duration(), true
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return nil, false
	case error:
		return x.Error(), true
	case time.Duration:
		return x, true
	case fmt.Stringer:
		s := x.String()
		return s, s != ""
	default:
		return fmt.Sprint(x), true
	}
}

func (f fields) fromContext(ctx context.Context) {
	m := metaFrom(ctx)
	f.setDefault("rid", m.rid)
	f.setDefault("handler", m.handler)
	if m.userID != 0 {
		f.setDefault("user_id", m.userID)
	}
	if m.chatID != 0 {
		f.setDefault("chat_id", m.chatID)
	}
	if m.updateID != 0 {
		f.setDefault("update_id", m.updateID)
	}
}

func (f fields) setDefault(key string, val any) {
	if s, ok := val.(string); ok && s == "" {
		return
	}
	if _, exists := f[key]; !exists {
		f[key] = val
	}
}

// finish fills event and component, compacts the rid and normalizes enums.
func (f fields) finish(message string, full bool) {
	if message == "" {
		message = "unknown"
	}
	f.setDefault("event", message)
	f.setDefault("component", "app")

	if rid, ok := f["rid"].(string); ok {
		if compact := CompactRID(rid); compact != rid {
			if full {
				f.setDefault("rid_full", rid)
			}
			f["rid"] = compact
		}
	}
	if s, ok := f["status"].(string); ok {
		f["status"] = normalizeStatus(s)
	}
	if o, ok := f["outcome"].(string); ok {
		if norm, valid := normalizeOutcome(o); valid {
			f["outcome"] = norm
		} else {
			delete(f, "outcome")
		}
	}
}

func encodeJSON(buf *bytes.Buffer, keys []string, f fields) error {
	buf.WriteByte('{')
	for i, k := range keys {
		data, err := json.Marshal(f[k])
		if err != nil {
			return fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(k))
		buf.WriteByte(':')
		buf.Write(data)
	}
	buf.WriteByte('}')
	return nil
}

func encodeKV(buf *bytes.Buffer, keys []string, f fields) {
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		s := fmt.Sprint(f[k])
		if strings.IndexFunc(s, needsQuote) >= 0 {
			s = strconv.Quote(s)
		}
		buf.WriteString(s)
	}
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
