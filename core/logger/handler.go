package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type logFormat int

const (
	formatJSON logFormat = iota
	formatKV
)

const tsLayout = "2006-01-02T15:04:05.000Z07:00"

// defaultKeyOrder puts the fields people grep for first. Unlisted keys follow
// in alphabetical order.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "trace_id", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "chat_type",
	"handler", "cb_key", "outcome", "duration_ms",
	"index", "title", "kind", "category", "minutes",
	"step", "doc", "driver", "hour", "minute", "reminders",
	"action", "endpoint", "attempt", "attempts",
	"err", "error", "error_kind",
}

type attrKV struct {
	key string
	val slog.Value
}

// handler renders records as single JSON objects or key=value lines.
type handler struct {
	out    io.Writer
	level  slog.Leveler
	format logFormat
	rank   map[string]int
	pre    []attrKV
	group  string
}

func newHandler(out io.Writer, level slog.Leveler, format logFormat, order []string) *handler {
	if level == nil {
		level = slog.LevelInfo
	}
	rank := make(map[string]int, len(order))
	for i, k := range order {
		if _, dup := rank[k]; !dup {
			rank[k] = i
		}
	}
	return &handler{out: out, level: level, format: format, rank: rank}
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.pre = append([]attrKV(nil), h.pre...)
	for _, a := range attrs {
		flatten(h.group, a, func(k string, v slog.Value) {
			clone.pre = append(clone.pre, attrKV{k, v})
		})
	}
	return &clone
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.group = joinKey(h.group, name)
	return &clone
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	fields := make(map[string]any, 16)
	ts := r.Time.UTC()
	fields["ts"] = ts.Format(tsLayout)
	fields["level"] = r.Level.String()
	if h.format == formatJSON {
		fields["ts_unix_nano"] = ts.UnixNano()
	}
	for _, p := range h.pre {
		setField(fields, p.key, p.val)
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(h.group, a, func(k string, v slog.Value) { setField(fields, k, v) })
		return true
	})
	metaFrom(ctx).fill(fields)
	h.finish(fields, r.Message)

	line, err := h.encode(fields)
	if err != nil {
		return err
	}
	_, err = h.out.Write(line)
	return err
}

// finish applies the line-level conventions: compact rid, mandatory event and
// component, lowercase status, no empty strings.
func (h *handler) finish(fields map[string]any, msg string) {
	if rid, _ := fields["rid"].(string); rid != "" {
		if short := CompactRID(rid); short != rid {
			if _, ok := fields["rid_full"]; !ok && h.format == formatJSON {
				fields["rid_full"] = rid
			}
			fields["rid"] = short
		}
	}
	if ev, _ := fields["event"].(string); ev == "" {
		if msg == "" {
			msg = "unknown"
		}
		fields["event"] = msg
	}
	if c, _ := fields["component"].(string); c == "" {
		fields["component"] = "app"
	}
	if s, ok := fields["status"].(string); ok {
		fields["status"] = strings.ToLower(s)
	}
	for k, v := range fields {
		if s, ok := v.(string); ok && s == "" {
			delete(fields, k)
		}
	}
}

func (h *handler) sortedKeys(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
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
		}
		return keys[i] < keys[j]
	})
	return keys
}

func (h *handler) encode(fields map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	keys := h.sortedKeys(fields)
	if h.format == formatJSON {
		buf.WriteByte('{')
		for i, k := range keys {
			val, err := json.Marshal(fields[k])
			if err != nil {
				return nil, fmt.Errorf("logger: encode %s: %w", k, err)
			}
			if i > 0 {
				buf.WriteByte(',')
			}
			key, _ := json.Marshal(k)
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
		buf.WriteByte('}')
	} else {
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(k)
			buf.WriteByte('=')
			buf.WriteString(kvValue(fields[k]))
		}
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func kvValue(v any) string {
	s := fmt.Sprint(v)
	if strings.IndexFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

func flatten(prefix string, a slog.Attr, emit func(string, slog.Value)) {
	key := joinKey(prefix, a.Key)
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			flatten(key, child, emit)
		}
		return
	}
	if key != "" {
		emit(key, v)
	}
}

// setField stores v under key. Durations become whole milliseconds under a
// key ending in _ms.
func setField(fields map[string]any, key string, v slog.Value) {
	switch v.Kind() {
	case slog.KindString:
		fields[key] = strings.TrimSpace(v.String())
	case slog.KindBool:
		fields[key] = v.Bool()
	case slog.KindInt64:
		fields[key] = v.Int64()
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			fields[key] = int64(u)
		} else {
			fields[key] = u
		}
	case slog.KindFloat64:
		fields[key] = v.Float64()
	case slog.KindDuration:
		if !strings.HasSuffix(key, "_ms") {
			key += "_ms"
		}
		fields[key] = RoundMS(v.Duration()).Milliseconds()
	case slog.KindTime:
		fields[key] = v.Time().UTC().Format(time.RFC3339Nano)
	default:
		switch x := v.Any().(type) {
		case nil:
		case error:
			fields[key] = x.Error()
		case fmt.Stringer:
			fields[key] = x.String()
		default:
			fields[key] = fmt.Sprint(x)
		}
	}
}
