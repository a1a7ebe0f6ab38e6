package aggregate

import (
	"fmt"
	"time"
)

// Period is one rollup granularity. Each carries its own ClickHouse date
// truncation and a trailing lookback window; coarser granularities look
// further back so late-arriving facts are folded in on later runs.
type Period string

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
	Yearly  Period = "yearly"
)

// Periods lists every granularity in aggregation order.
var Periods = []Period{Daily, Weekly, Monthly, Yearly}

func (p Period) Valid() bool {
	switch p {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// DateFunc is the ClickHouse function truncating a timestamp to this
// granularity's bucket boundary.
func (p Period) DateFunc() string {
	switch p {
	case Daily:
		return "toDate"
	case Weekly:
		return "toStartOfWeek"
	case Monthly:
		return "toStartOfMonth"
	case Yearly:
		return "toStartOfYear"
	}
	panic(fmt.Sprintf("unknown period %q", string(p)))
}

// LookbackDays is the re-aggregation window for this granularity.
func (p Period) LookbackDays() int {
	switch p {
	case Daily:
		return 7
	case Weekly:
		return 30
	case Monthly:
		return 90
	case Yearly:
		return 730
	}
	panic(fmt.Sprintf("unknown period %q", string(p)))
}

// WindowStart is the lower bound of the lookback window relative to now.
func (p Period) WindowStart(now time.Time) time.Time {
	return now.AddDate(0, 0, -p.LookbackDays())
}

// Truncate maps a timestamp to its bucket start, matching DateFunc.
// Weeks start on Sunday, as ClickHouse's default toStartOfWeek does.
func (p Period) Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	switch p {
	case Daily:
		return day
	case Weekly:
		return day.AddDate(0, 0, -int(day.Weekday()))
	case Monthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	case Yearly:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, t.Location())
	}
	panic(fmt.Sprintf("unknown period %q", string(p)))
}
