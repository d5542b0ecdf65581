package layout

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Record is a stored contract decoded as loosely typed JSON.
type Record map[string]any

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Record:
		return map[string]any(t), true
	case string:
		// some rows carry the layout as a JSON-encoded string
		s := strings.TrimSpace(t)
		if !strings.HasPrefix(s, "{") {
			return nil, false
		}
		var m map[string]any
		if json.Unmarshal([]byte(s), &m) != nil {
			return nil, false
		}
		return m, true
	}
	return nil, false
}

func asSlice(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []map[string]any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out, true
	case string:
		s := strings.TrimSpace(t)
		if !strings.HasPrefix(s, "[") {
			return nil, false
		}
		var a []any
		if json.Unmarshal([]byte(s), &a) != nil {
			return nil, false
		}
		return a, true
	}
	return nil, false
}

// str renders scalars as strings and joins string lists with newlines.
func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := str(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	case []string:
		return strings.Join(t, "\n")
	}
	return ""
}

// first returns the first non-empty string among keys.
func first(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := str(m[k]); s != "" {
			return s
		}
	}
	return ""
}

// bilingual reads a Text from the first key that yields any content. A key
// may hold {en, ar}, or a plain string with siblings such as key_ar.
func bilingual(m map[string]any, keys ...string) Text {
	for _, k := range keys {
		var t Text
		if obj, ok := m[k].(map[string]any); ok {
			t.EN = first(obj, "en", "english", "EN")
			t.AR = first(obj, "ar", "arabic", "AR")
		} else {
			t.EN = str(m[k])
		}
		if t.EN == "" {
			t.EN = first(m, k+"_en", k+"En", "english_"+k)
		}
		if t.AR == "" {
			t.AR = first(m, k+"_ar", k+"Ar", "arabic_"+k)
		}
		if !t.Empty() {
			return t
		}
	}
	return Text{}
}

func formatDate(s string) string {
	if s == "" {
		return ""
	}
	for _, f := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(f, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

func orText(t, fallback Text) Text {
	if t.EN == "" {
		t.EN = fallback.EN
	}
	if t.AR == "" {
		t.AR = fallback.AR
	}
	return t
}

func orString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
