package graph

import "time"

// Record coercion helpers. The driver returns interface values whose concrete
// types depend on the server (int64, float64, []any); readers normalize here.

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asInt(v any) int {
	switch t := v.(type) {
	case int64:
		return int(t)
	case int:
		return t
	case float64:
		return int(t)
	default:
		return 0
	}
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	default:
		return 0
	}
}

func asStringList(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func asVector(v any) []float32 {
	raw, ok := v.([]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	out := make([]float32, 0, len(raw))
	for _, item := range raw {
		switch t := item.(type) {
		case float64:
			out = append(out, float32(t))
		case int64:
			out = append(out, float32(t))
		}
	}
	return out
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func vectorParam(vec []float32) []any {
	if len(vec) == 0 {
		return nil
	}
	out := make([]any, len(vec))
	for i, f := range vec {
		out[i] = float64(f)
	}
	return out
}
