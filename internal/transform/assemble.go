package transform

import (
	"sort"
	"strings"

	"adsreport/internal/domain"
)

// Curated column order for ad_daily: ids and names, dates, then metric
// blocks from basic through creative. Columns the batch does not carry
// are skipped; columns the list does not know are appended
// alphabetically rather than dropped.
var adDailyColumnOrder = []string{
	"date_start", "date_stop",
	"campaign_id", "campaign_name",
	"campaign_status", "campaign_effective_status", "campaign_is_active",
	"adset_id", "adset_name",
	"ad_id", "ad_name",

	"spend", "impressions", "clicks", "reach", "frequency",
	"ctr", "cpc", "cpm", "cpp",
	"unique_clicks", "unique_ctr", "outbound_clicks",

	"messages_total", "conversations_started", "first_replies",
	"link_clicks", "leads",

	"actions_comment", "actions_like", "actions_post_engagement",
	"actions_post_reaction", "actions_page_engagement",

	"video_30_sec_watched_actions", "video_avg_time_watched_actions",
	"video_p100_watched_actions", "video_play_actions",
	"actions_video_view",

	"conversions", "cost_per_conversion",
	"cost_per_message", "cost_per_conversation",

	"quality_ranking", "engagement_rate_ranking", "conversion_rate_ranking",

	"creative_id", "video_url", "image_url", "thumbnail_url",
	"creative_name", "creative_body", "creative_title", "link_url",
}

// Curated priority order for campaign_period.
var campaignPeriodColumnOrder = []string{
	"campaign_id", "campaign_name",
	"campaign_status", "campaign_effective_status", "campaign_is_active",
	"days_active", "first_date", "last_date",
	"spend", "spend_per_day", "impressions", "clicks", "reach", "frequency",
	"ctr", "cpc", "cpm",
	"messages_total", "conversations_started", "conversations_per_day", "first_replies",
	"cost_per_message", "cost_per_conversation", "cost_per_lead",
	"conversation_rate", "message_rate",
	"link_clicks", "leads", "conversions", "cost_per_conversion",
	"unique_clicks", "outbound_clicks",
	"actions_comment", "actions_like", "actions_post_engagement", "actions_post_reaction",
	"actions_page_engagement",
	"video_30_sec_watched_actions", "video_play_actions", "actions_video_view",
}

// Noisy per-depth and offsite breakdown columns excluded from ad_daily.
var suppressedColumnPrefixes = []string{
	"actions_onsite_conversion.messaging_user_depth",
	"cost_per_onsite_conversion.messaging_user_depth",
	"actions_offsite",
	"cost_per_offsite",
}

// Hierarchy-ordered identifier and name columns for generic ordering.
var idColumnRank = []string{"campaign_id", "adset_id", "ad_id", "creative_id"}
var nameColumnRank = []string{"campaign_name", "adset_name", "ad_name", "creative_name"}

// CreateReportingTables assembles the five report tables from the final
// normalized rows: the record-level ad_daily plus the four grouped
// aggregates. An empty batch yields an empty table map, a valid
// "nothing to report" outcome. Output rows are fresh copies with no
// aliasing back into the input.
func CreateReportingTables(rows []domain.Row) map[string]*domain.Table {
	if len(rows) == 0 {
		return map[string]*domain.Table{}
	}

	adDaily := &domain.Table{
		Name:        "ad_daily",
		Rows:        make([]domain.Row, 0, len(rows)),
		StartColumn: "date_start",
		StopColumn:  "date_stop",
	}
	for _, row := range rows {
		adDaily.Rows = append(adDaily.Rows, row.Clone())
	}

	tables := map[string]*domain.Table{
		"ad_daily":        adDaily,
		"messages_daily":  MessagesDaily(rows),
		"campaign_daily":  CampaignDaily(rows),
		"campaign_period": CampaignPeriod(rows),
		"adset_daily":     AdsetDaily(rows),
		"top_ads_period":  TopAdsPeriod(rows),
	}

	for _, table := range tables {
		assemble(table)
	}
	return tables
}

// Run executes the whole core on a raw batch:
// flatten → normalize → derive → aggregate → assemble.
func Run(batch []domain.RawRecord) map[string]*domain.Table {
	return CreateReportingTables(DeriveMetrics(Normalize(FlattenActions(batch))))
}

// assemble fixes a table's column order and fills residual missing cells
// per type: numeric columns get 0, text columns get "", date columns are
// left untouched.
func assemble(table *domain.Table) {
	columns := collectColumns(table)

	switch table.Name {
	case "ad_daily":
		table.Columns = orderCurated(columns, adDailyColumnOrder)
	case "campaign_period":
		table.Columns = orderCurated(columns, campaignPeriodColumnOrder)
	default:
		table.Columns = orderGeneric(columns, table)
	}

	fillResiduals(table)
}

// collectColumns returns the union of columns across a table's rows plus
// its date columns, with suppressed breakdown columns dropped.
func collectColumns(table *domain.Table) []string {
	seen := make(map[string]bool)
	var columns []string
	add := func(name string) {
		if name == "" || seen[name] || suppressed(name) {
			return
		}
		seen[name] = true
		columns = append(columns, name)
	}

	add(table.StartColumn)
	add(table.StopColumn)
	for _, row := range table.Rows {
		for name := range row.Text {
			add(name)
		}
		for name := range row.Metrics {
			add(name)
		}
	}
	return columns
}

func suppressed(name string) bool {
	for _, prefix := range suppressedColumnPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// orderCurated applies a manual priority list, then appends the leftover
// columns alphabetically.
func orderCurated(columns, priority []string) []string {
	available := make(map[string]bool, len(columns))
	for _, c := range columns {
		available[c] = true
	}

	ordered := make([]string, 0, len(columns))
	used := make(map[string]bool, len(columns))
	for _, c := range priority {
		if available[c] {
			ordered = append(ordered, c)
			used[c] = true
		}
	}

	var extras []string
	for _, c := range columns {
		if !used[c] {
			extras = append(extras, c)
		}
	}
	sort.Strings(extras)
	return append(ordered, extras...)
}

// orderGeneric orders columns as id block, name block, date block, then
// the remaining metric block alphabetically.
func orderGeneric(columns []string, table *domain.Table) []string {
	available := make(map[string]bool, len(columns))
	for _, c := range columns {
		available[c] = true
	}
	used := make(map[string]bool, len(columns))
	ordered := make([]string, 0, len(columns))
	take := func(name string) {
		if available[name] && !used[name] {
			ordered = append(ordered, name)
			used[name] = true
		}
	}

	rankedTake := func(rank []string, suffix string) {
		for _, c := range rank {
			take(c)
		}
		var rest []string
		for _, c := range columns {
			if strings.HasSuffix(c, suffix) && !used[c] {
				rest = append(rest, c)
			}
		}
		sort.Strings(rest)
		for _, c := range rest {
			take(c)
		}
	}

	rankedTake(idColumnRank, "_id")
	rankedTake(nameColumnRank, "_name")
	take(table.StartColumn)
	take(table.StopColumn)

	var metricsBlock []string
	for _, c := range columns {
		if !used[c] {
			metricsBlock = append(metricsBlock, c)
		}
	}
	sort.Strings(metricsBlock)
	return append(ordered, metricsBlock...)
}

// fillResiduals materializes every column on every row with its
// type-appropriate default. A column is numeric if any row carries it as
// a metric; otherwise it is text.
func fillResiduals(table *domain.Table) {
	numeric := make(map[string]bool)
	for _, row := range table.Rows {
		for name := range row.Metrics {
			numeric[name] = true
		}
	}

	for i := range table.Rows {
		row := &table.Rows[i]
		for _, c := range table.Columns {
			if table.IsDateColumn(c) {
				continue
			}
			if numeric[c] {
				if !row.HasMetric(c) {
					row.Metrics[c] = 0
				}
				continue
			}
			if _, ok := row.Text[c]; !ok {
				row.Text[c] = ""
			}
		}
	}
}
