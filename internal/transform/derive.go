package transform

import "adsreport/internal/domain"

// Raw action-type columns feeding the canonical messaging metrics.
const (
	rawMessagesColumn     = "actions_onsite_conversion.total_messaging_connection"
	rawConversationColumn = "actions_onsite_conversion.messaging_conversation_started_7d"
	rawFirstReplyColumn   = "actions_onsite_conversion.messaging_first_reply"
	rawLinkClickColumn    = "actions_link_click"
)

// leadSourceColumns all count as leads; the canonical column is their
// sum, not a first-match.
var leadSourceColumns = []string{
	"actions_lead",
	"actions_onsite_web_lead",
	"actions_onsite_conversion.lead",
	"actions_onsite_conversion.lead_grouped",
}

// DeriveMetrics computes the canonical messaging funnel metrics and the
// per-row cost ratios from normalized columns. Each canonical column
// defaults to 0 when its source column is absent. Pure over the row set;
// the returned slice is the input slice with the derived columns added.
func DeriveMetrics(rows []domain.Row) []domain.Row {
	for i := range rows {
		row := &rows[i]

		row.Metrics["messages_total"] = row.Metric(rawMessagesColumn)
		row.Metrics["conversations_started"] = row.Metric(rawConversationColumn)
		row.Metrics["first_replies"] = row.Metric(rawFirstReplyColumn)
		row.Metrics["link_clicks"] = row.Metric(rawLinkClickColumn)

		var leads float64
		for _, col := range leadSourceColumns {
			leads += row.Metric(col)
		}
		row.Metrics["leads"] = leads

		spend := row.Metric("spend")
		row.Metrics["cost_per_message"] = safeDiv(spend, row.Metric("messages_total"))
		row.Metrics["cost_per_conversation"] = safeDiv(spend, row.Metric("conversations_started"))
	}
	return rows
}
