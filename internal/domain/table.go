package domain

import "time"

// Table is a named, column-ordered report table. StartColumn and
// StopColumn name the calendar columns backed by Row.DateStart and
// Row.DateStop for this table ("" when the table has no such column):
// daily tables use date_start (and ad_daily also date_stop), while
// campaign_period exposes them as first_date / last_date.
type Table struct {
	Name        string
	Columns     []string
	Rows        []Row
	StartColumn string
	StopColumn  string
}

// IsDateColumn reports whether the named column holds calendar dates.
func (t *Table) IsDateColumn(name string) bool {
	return name != "" && (name == t.StartColumn || name == t.StopColumn)
}

// Cell returns the typed value for a column in a row: time.Time for date
// columns, float64 for metric columns, string otherwise.
func (t *Table) Cell(row Row, column string) any {
	switch column {
	case t.StartColumn:
		return row.DateStart
	case t.StopColumn:
		return row.DateStop
	}
	if v, ok := row.Metrics[column]; ok {
		return v
	}
	return row.Text[column]
}

// Render serializes the table for the sink: a header row followed by one
// value row per record. Dates become YYYY-MM-DD strings here and nowhere
// earlier; a zero date renders as "". Numeric and text cells are already
// null-free by the assembler's contract.
func (t *Table) Render() [][]any {
	out := make([][]any, 0, len(t.Rows)+1)
	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	out = append(out, header)

	for _, row := range t.Rows {
		cells := make([]any, len(t.Columns))
		for i, c := range t.Columns {
			switch v := t.Cell(row, c).(type) {
			case time.Time:
				if v.IsZero() {
					cells[i] = ""
				} else {
					cells[i] = v.Format("2006-01-02")
				}
			default:
				cells[i] = v
			}
		}
		out = append(out, cells)
	}
	return out
}
