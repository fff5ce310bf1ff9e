package transform

import (
	"encoding/json"

	"adsreport/internal/domain"
)

// Column name prefix per raw breakdown field.
var breakdownPrefixes = map[string]string{
	"actions":              "actions_",
	"action_values":        "action_value_",
	"cost_per_action_type": "cost_per_",
}

// Video metrics arrive as a single-element list of {action_type, value}
// dicts, or a string-encoded version of the same.
var videoFields = []string{
	"video_30_sec_watched_actions",
	"video_avg_time_watched_actions",
	"video_p100_watched_actions",
	"video_play_actions",
}

// actionEntry is one element of an action breakdown list.
type actionEntry struct {
	ActionType string
	Value      float64
}

// FlattenActions expands the action breakdown fields of a raw batch into
// flat numeric columns and collapses the video metric fields to scalars.
//
// Two passes: the first collects the ordered union of action types seen
// anywhere in the batch per breakdown field, the second materializes one
// column per (field, type) pair on every record. A record lacking a type
// present elsewhere in the batch gets the column with value 0, so the
// generated schema is uniform within a batch but batch-dependent across
// runs. The raw breakdown fields are consumed and do not survive.
func FlattenActions(batch []domain.RawRecord) []domain.RawRecord {
	if len(batch) == 0 {
		return nil
	}

	typesByField := make(map[string][]string, len(domain.ActionBreakdownFields))
	for _, field := range domain.ActionBreakdownFields {
		typesByField[field] = collectActionTypes(batch, field)
	}

	out := make([]domain.RawRecord, 0, len(batch))
	for _, rec := range batch {
		flat := make(domain.RawRecord, len(rec))
		for k, v := range rec {
			if _, isBreakdown := breakdownPrefixes[k]; isBreakdown {
				continue
			}
			flat[k] = v
		}

		for _, field := range domain.ActionBreakdownFields {
			prefix := breakdownPrefixes[field]
			values := breakdownValues(rec[field])
			for _, actionType := range typesByField[field] {
				flat[prefix+actionType] = values[actionType]
			}
		}

		for _, field := range videoFields {
			if v, ok := rec[field]; ok {
				flat[field] = extractFirstValue(v)
			}
		}

		out = append(out, flat)
	}
	return out
}

// collectActionTypes returns the distinct action types observed for one
// breakdown field across the whole batch, in first-seen order.
func collectActionTypes(batch []domain.RawRecord, field string) []string {
	seen := make(map[string]bool)
	var order []string
	for _, rec := range batch {
		for _, entry := range parseBreakdown(rec[field]) {
			if !seen[entry.ActionType] {
				seen[entry.ActionType] = true
				order = append(order, entry.ActionType)
			}
		}
	}
	return order
}

// breakdownValues maps action type to value for one record's breakdown
// list. Duplicate types keep the first occurrence; this mirrors upstream
// behavior that the API does not actually guarantee, so it is pinned by
// tests as documented behavior rather than inferred intent.
func breakdownValues(raw any) map[string]float64 {
	entries := parseBreakdown(raw)
	values := make(map[string]float64, len(entries))
	for _, e := range entries {
		if _, dup := values[e.ActionType]; !dup {
			values[e.ActionType] = e.Value
		}
	}
	return values
}

// parseBreakdown decodes a raw breakdown value into its entries. Anything
// that is not a non-empty list of {action_type, value} pairs, directly or
// string-encoded, yields nil.
func parseBreakdown(raw any) []actionEntry {
	switch v := raw.(type) {
	case []any:
		var entries []actionEntry
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			name, ok := m["action_type"].(string)
			if !ok || name == "" {
				continue
			}
			value, _ := toFloat(m["value"])
			entries = append(entries, actionEntry{ActionType: name, Value: value})
		}
		return entries
	case string:
		var decoded []any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return nil
		}
		return parseBreakdown(decoded)
	default:
		return nil
	}
}

// extractFirstValue pulls the numeric value out of a video metric field:
// the first element's value for list shapes, the value key for dict
// shapes, a plain number otherwise. Any parse failure yields 0.
func extractFirstValue(raw any) float64 {
	switch v := raw.(type) {
	case nil:
		return 0
	case []any:
		if len(v) == 0 {
			return 0
		}
		if m, ok := v[0].(map[string]any); ok {
			f, _ := toFloat(m["value"])
			return f
		}
		f, _ := toFloat(v[0])
		return f
	case map[string]any:
		f, _ := toFloat(v["value"])
		return f
	case string:
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			switch decoded.(type) {
			case []any, map[string]any:
				return extractFirstValue(decoded)
			}
		}
		f, _ := toFloat(v)
		return f
	default:
		f, _ := toFloat(v)
		return f
	}
}
