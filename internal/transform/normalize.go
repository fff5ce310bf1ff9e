package transform

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"adsreport/internal/domain"
)

// forcedNumericFields always exist on a normalized row, defaulting to 0.
var forcedNumericFields = []string{
	"spend",
	"impressions",
	"clicks",
	"reach",
	"frequency",
	"ctr",
	"cpc",
	"cpm",
	"outbound_clicks",
}

// knownNumericFields are coerced to float64 when the source supplies them.
var knownNumericFields = map[string]bool{
	"cpp":                            true,
	"unique_clicks":                  true,
	"unique_ctr":                     true,
	"conversions":                    true,
	"cost_per_conversion":            true,
	"video_30_sec_watched_actions":   true,
	"video_avg_time_watched_actions": true,
	"video_p100_watched_actions":     true,
	"video_play_actions":             true,
}

// identifierFields always exist on a normalized row, defaulting to "".
var identifierFields = []string{
	"campaign_id", "campaign_name",
	"adset_id", "adset_name",
	"ad_id", "ad_name",
}

// knownTextFields stay text even when their values look numeric.
var knownTextFields = map[string]bool{
	"account_id":                 true,
	"account_name":               true,
	"campaign_status":            true,
	"campaign_effective_status":  true,
	"campaign_configured_status": true,
	"campaign_is_active":         true,
	"creative_id":                true,
	"creative_name":              true,
	"creative_body":              true,
	"creative_title":             true,
	"video_url":                  true,
	"image_url":                  true,
	"thumbnail_url":              true,
	"link_url":                   true,
	"quality_ranking":            true,
	"engagement_rate_ranking":    true,
	"conversion_rate_ranking":    true,
	"objective":                  true,
	"buying_type":                true,
}

func isIdentifierField(name string) bool {
	for _, f := range identifierFields {
		if f == name {
			return true
		}
	}
	return false
}

// Normalize converts a flattened raw batch into type-stable rows: known
// numeric fields become float64 (unparseable values become 0, never a
// sentinel), identifier fields become strings defaulting to "", and the
// calendar columns are parsed. Every row leaves with the same closed
// column core regardless of which optional fields its source supplied.
//
// The cpc and cpm rates are computed per row from spend/clicks and
// spend/impressions when the source omitted the field across the whole
// batch.
func Normalize(batch []domain.RawRecord) []domain.Row {
	if len(batch) == 0 {
		return nil
	}

	rows := make([]domain.Row, 0, len(batch))
	for _, rec := range batch {
		row := domain.NewRow()
		row.DateStart = parseDate(rec["date_start"])
		row.DateStop = parseDate(rec["date_stop"])

		for key, val := range rec {
			switch {
			case key == "date_start" || key == "date_stop":
				// handled above
			case isIdentifierField(key) || knownTextFields[key]:
				row.Text[key] = toText(val)
			case isForcedNumeric(key) || knownNumericFields[key]:
				f, _ := toFloat(val)
				row.Metrics[key] = f
			default:
				// Schema drift: unknown numbers become metrics, anything
				// else passes through as text.
				if f, ok := numericValue(val); ok {
					row.Metrics[key] = f
				} else {
					row.Text[key] = toText(val)
				}
			}
		}

		for _, f := range forcedNumericFields {
			if !row.HasMetric(f) {
				row.Metrics[f] = 0
			}
		}
		for _, f := range identifierFields {
			if _, ok := row.Text[f]; !ok {
				row.Text[f] = ""
			}
		}

		rows = append(rows, row)
	}

	if !batchHasField(batch, "cpc") {
		for i := range rows {
			rows[i].Metrics["cpc"] = safeDiv(rows[i].Metric("spend"), rows[i].Metric("clicks"))
		}
	}
	if !batchHasField(batch, "cpm") {
		for i := range rows {
			rows[i].Metrics["cpm"] = safeDiv(rows[i].Metric("spend"), rows[i].Metric("impressions")) * 1000
		}
	}

	return rows
}

func isForcedNumeric(name string) bool {
	for _, f := range forcedNumericFields {
		if f == name {
			return true
		}
	}
	return false
}

func batchHasField(batch []domain.RawRecord, field string) bool {
	for _, rec := range batch {
		if _, ok := rec[field]; ok {
			return true
		}
	}
	return false
}

// safeDiv divides with a zero guard: a zero or negative denominator
// yields 0, never an error or NaN.
func safeDiv(num, den float64) float64 {
	if den > 0 {
		return num / den
	}
	return 0
}

// toFloat coerces heterogeneous raw values to float64. The second return
// reports whether the value was parseable; callers that must never see a
// sentinel ignore it and take the 0.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// numericValue accepts only values that are already numbers; numeric
// strings are left alone so identifiers survive as text.
func numericValue(v any) (float64, bool) {
	switch v.(type) {
	case float64, float32, int, int64, json.Number:
		return toFloat(v)
	default:
		return 0, false
	}
}

func toText(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return s.String()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// parseDate accepts YYYY-MM-DD, optionally with a trailing time part.
// Unparseable input yields the zero time.
func parseDate(v any) time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}
	}
	if idx := strings.IndexByte(s, 'T'); idx > 0 {
		s = s[:idx]
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}
