package transform

import (
	"sort"
	"strings"
	"time"

	"adsreport/internal/domain"
)

// The aggregation engine produces the five grouped report tables. Its
// central invariant: ratio metrics are always recomputed from summed
// numerator and denominator components after grouping. Averaging per-row
// ratios silently skews every KPI whenever group sizes differ, so no
// ratio column ever survives a group-by; it is overwritten from sums.

// ratioMetric defines one recomputable ratio: value = num/den * scale,
// 0 when the denominator is 0.
type ratioMetric struct {
	num   string
	den   string
	scale float64
}

var ratioMetrics = map[string]ratioMetric{
	"ctr":                   {num: "clicks", den: "impressions", scale: 100},
	"cpc":                   {num: "spend", den: "clicks", scale: 1},
	"cpm":                   {num: "spend", den: "impressions", scale: 1000},
	"cost_per_message":      {num: "spend", den: "messages_total", scale: 1},
	"cost_per_conversation": {num: "spend", den: "conversations_started", scale: 1},
	"cost_per_lead":         {num: "spend", den: "leads", scale: 1},
	"cost_per_conversion":   {num: "spend", den: "conversions", scale: 1},
	"conversation_rate":     {num: "conversations_started", den: "impressions", scale: 100},
	"message_rate":          {num: "messages_total", den: "impressions", scale: 100},
}

// group is one grouping cell: the key values plus the member row indices,
// in encounter order.
type group struct {
	date time.Time
	keys map[string]string
	idx  []int
}

// groupRows groups rows by the optional calendar date plus the named text
// key columns. Groups and their members keep batch encounter order, which
// makes downstream descending sorts stable across reruns.
func groupRows(rows []domain.Row, byDate bool, keyCols []string) []group {
	index := make(map[string]int)
	var groups []group

	var sb strings.Builder
	for i, row := range rows {
		sb.Reset()
		if byDate {
			sb.WriteString(row.DateStart.Format("2006-01-02"))
		}
		for _, col := range keyCols {
			sb.WriteByte(0x1f)
			sb.WriteString(row.TextValue(col))
		}
		key := sb.String()

		gi, ok := index[key]
		if !ok {
			gi = len(groups)
			index[key] = gi
			keys := make(map[string]string, len(keyCols))
			for _, col := range keyCols {
				keys[col] = row.TextValue(col)
			}
			g := group{keys: keys}
			if byDate {
				g.date = row.DateStart
			}
			groups = append(groups, g)
		}
		groups[gi].idx = append(groups[gi].idx, i)
	}
	return groups
}

// metricPresence returns the union of metric columns across the batch.
// Aggregation specs are filtered against it so output column sets stay
// batch-dependent, like the input schema.
func metricPresence(rows []domain.Row) map[string]bool {
	present := make(map[string]bool)
	for _, row := range rows {
		for name := range row.Metrics {
			present[name] = true
		}
	}
	return present
}

func textPresence(rows []domain.Row) map[string]bool {
	present := make(map[string]bool)
	for _, row := range rows {
		for name := range row.Text {
			present[name] = true
		}
	}
	return present
}

func filterPresent(cols []string, present map[string]bool) []string {
	out := cols[:0:0]
	for _, c := range cols {
		if present[c] {
			out = append(out, c)
		}
	}
	return out
}

func sumOver(rows []domain.Row, idx []int, name string) float64 {
	var total float64
	for _, i := range idx {
		total += rows[i].Metric(name)
	}
	return total
}

func meanOver(rows []domain.Row, idx []int, name string) float64 {
	if len(idx) == 0 {
		return 0
	}
	return sumOver(rows, idx, name) / float64(len(idx))
}

// firstOver returns the first non-empty value of a text column within
// the group, in encounter order.
func firstOver(rows []domain.Row, idx []int, name string) string {
	for _, i := range idx {
		if v := rows[i].TextValue(name); v != "" {
			return v
		}
	}
	return ""
}

// recomputeRatios overwrites the named ratio columns on an aggregated row
// from its own summed components. Ratios whose components the batch never
// carried are skipped so the column set does not grow past the input's.
func recomputeRatios(row *domain.Row, present map[string]bool, names ...string) {
	for _, name := range names {
		r := ratioMetrics[name]
		if !present[r.num] || !present[r.den] {
			continue
		}
		row.Metrics[name] = safeDiv(row.Metric(r.num), row.Metric(r.den)) * r.scale
	}
}

// aggregate runs one group-by: sums, means, and first-wins columns per
// group, then ratio recomputation from the summed components.
func aggregate(rows []domain.Row, byDate bool, keyCols, sums, means, firsts, ratios []string) []domain.Row {
	present := metricPresence(rows)
	textPresent := textPresence(rows)
	sums = filterPresent(sums, present)
	means = filterPresent(means, present)
	firsts = filterPresent(firsts, textPresent)

	groups := groupRows(rows, byDate, keyCols)
	out := make([]domain.Row, 0, len(groups))
	for _, g := range groups {
		row := domain.NewRow()
		row.DateStart = g.date
		for col, v := range g.keys {
			row.Text[col] = v
		}
		for _, m := range sums {
			row.Metrics[m] = sumOver(rows, g.idx, m)
		}
		for _, m := range means {
			row.Metrics[m] = meanOver(rows, g.idx, m)
		}
		for _, c := range firsts {
			row.Text[c] = firstOver(rows, g.idx, c)
		}
		recomputeRatios(&row, present, ratios...)
		out = append(out, row)
	}
	return out
}

// MessagesDaily aggregates the whole account by day.
func MessagesDaily(rows []domain.Row) *domain.Table {
	out := aggregate(rows, true, nil,
		[]string{"messages_total", "conversations_started", "first_replies", "spend", "clicks", "impressions", "reach"},
		nil, nil,
		[]string{"cost_per_message", "cost_per_conversation", "cpc", "ctr"},
	)
	return &domain.Table{Name: "messages_daily", Rows: out, StartColumn: "date_start"}
}

// CampaignDaily aggregates by campaign and day.
func CampaignDaily(rows []domain.Row) *domain.Table {
	out := aggregate(rows, true,
		[]string{"campaign_id", "campaign_name"},
		[]string{"messages_total", "conversations_started", "first_replies", "spend", "clicks", "impressions", "reach"},
		[]string{"frequency"},
		nil,
		[]string{"cost_per_message", "cpc", "ctr", "cpm", "cost_per_conversation"},
	)
	return &domain.Table{Name: "campaign_daily", Rows: out, StartColumn: "date_start"}
}

// AdsetDaily aggregates by ad set and day.
func AdsetDaily(rows []domain.Row) *domain.Table {
	out := aggregate(rows, true,
		[]string{"adset_id", "adset_name", "campaign_id", "campaign_name"},
		[]string{"messages_total", "spend", "clicks", "impressions", "reach"},
		[]string{"frequency"},
		nil,
		[]string{"cost_per_message", "cpc", "ctr", "cpm"},
	)
	return &domain.Table{Name: "adset_daily", Rows: out, StartColumn: "date_start"}
}

// CampaignPeriod aggregates each campaign across the whole date range and
// enriches the totals with activity-span and per-day rates.
func CampaignPeriod(rows []domain.Row) *domain.Table {
	present := metricPresence(rows)
	out := aggregate(rows, false,
		[]string{"campaign_id", "campaign_name"},
		[]string{
			"messages_total", "conversations_started", "first_replies", "link_clicks", "leads",
			"spend", "clicks", "impressions", "reach", "unique_clicks", "outbound_clicks",
			"actions_comment", "actions_like", "actions_post_engagement",
			"actions_post_reaction", "actions_page_engagement",
			"video_30_sec_watched_actions", "video_play_actions", "actions_video_view",
			"conversions",
		},
		[]string{"frequency"},
		[]string{"campaign_status", "campaign_effective_status", "campaign_configured_status", "campaign_is_active"},
		[]string{
			"ctr", "cpc", "cpm",
			"cost_per_message", "cost_per_conversation", "cost_per_lead", "cost_per_conversion",
			"conversation_rate", "message_rate",
		},
	)

	// Activity span per campaign: days_active counts both endpoint days,
	// so a single-day campaign has days_active == 1.
	spans := campaignSpans(rows)
	for i := range out {
		span, ok := spans[campaignKey(out[i])]
		if !ok {
			continue
		}
		days := float64(span.last.Sub(span.first).Hours()/24) + 1
		out[i].DateStart = span.first
		out[i].DateStop = span.last
		out[i].Metrics["days_active"] = days
		out[i].Metrics["spend_per_day"] = safeDiv(out[i].Metric("spend"), days)
		if present["conversations_started"] {
			out[i].Metrics["conversations_per_day"] = safeDiv(out[i].Metric("conversations_started"), days)
		}
	}

	// Most successful campaigns first.
	sortMetric := "conversations_started"
	if !present[sortMetric] {
		sortMetric = "spend"
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Metric(sortMetric) > out[j].Metric(sortMetric)
	})

	return &domain.Table{Name: "campaign_period", Rows: out, StartColumn: "first_date", StopColumn: "last_date"}
}

type dateSpan struct {
	first time.Time
	last  time.Time
}

func campaignKey(row domain.Row) string {
	return row.TextValue("campaign_id") + "\x1f" + row.TextValue("campaign_name")
}

func campaignSpans(rows []domain.Row) map[string]dateSpan {
	spans := make(map[string]dateSpan)
	for _, row := range rows {
		if row.DateStart.IsZero() {
			continue
		}
		key := campaignKey(row)
		span, ok := spans[key]
		if !ok {
			spans[key] = dateSpan{first: row.DateStart, last: row.DateStart}
			continue
		}
		if row.DateStart.Before(span.first) {
			span.first = row.DateStart
		}
		if row.DateStart.After(span.last) {
			span.last = row.DateStart
		}
		spans[key] = span
	}
	return spans
}

// TopAdsPeriod ranks every ad by total messages across the period,
// keeping first-seen creative metadata per ad. Ties retain encounter
// order.
func TopAdsPeriod(rows []domain.Row) *domain.Table {
	out := aggregate(rows, false,
		[]string{"campaign_id", "campaign_name", "adset_id", "adset_name", "ad_id", "ad_name"},
		[]string{"messages_total", "spend", "clicks", "impressions"},
		nil,
		[]string{"creative_id", "video_url", "image_url", "thumbnail_url", "creative_name"},
		[]string{"cost_per_message", "cpc", "ctr"},
	)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Metric("messages_total") > out[j].Metric("messages_total")
	})

	return &domain.Table{Name: "top_ads_period", Rows: out}
}
