package score

import (
	"fmt"
	"strings"
)

// ExportTimeLayout formats log timestamps in local time.
const ExportTimeLayout = "2006/01/02 15:04:05"

// ExportHeader is the first row of every export.
var ExportHeader = []string{"类型", "子项", "评分/变化", "得分变化", "时间点"}

// ExportLog returns the event log as a header row followed by one row per entry.
// ASCII commas in the display value are replaced with full-width ones so the
// value never splits a comma-delimited field. An empty log yields ErrEmptyLog.
func (a *Aggregator) ExportLog() ([][]string, error) {
	if len(a.log) == 0 {
		return nil, ErrEmptyLog
	}

	rows := make([][]string, 0, len(a.log)+1)
	rows = append(rows, append([]string(nil), ExportHeader...))
	for _, e := range a.log {
		rows = append(rows, []string{
			e.Category,
			e.Subject,
			strings.ReplaceAll(e.Value, ",", "，"),
			fmt.Sprintf("%+d", e.DeltaPoints),
			e.Time.Local().Format(ExportTimeLayout),
		})
	}

	return rows, nil
}
