package pipeline

import (
	"fmt"
	"time"
)

// Granularity is the calendar unit a backfill range is split on.
type Granularity string

const (
	Year  Granularity = "year"
	Month Granularity = "month"
	Day   Granularity = "day"
)

// DateRange is an inclusive span of days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) String() string {
	return r.Start.Format("20060102") + "~" + r.End.Format("20060102")
}

// Plan describes a backfill run.
type Plan struct {
	Start       time.Time
	End         time.Time
	Granularity Granularity
	// Pause is the fixed delay between successive chunk requests.
	Pause time.Duration
}

// DefaultPlan covers 2016-01-01 through 2026-02-05 in calendar-year chunks
// with a two second pause between requests.
func DefaultPlan(loc *time.Location) Plan {
	if loc == nil {
		loc = time.Local
	}
	return Plan{
		Start:       time.Date(2016, time.January, 1, 0, 0, 0, 0, loc),
		End:         time.Date(2026, time.February, 5, 0, 0, 0, 0, loc),
		Granularity: Year,
		Pause:       2 * time.Second,
	}
}

// Chunks splits the plan into ranges.
func (p Plan) Chunks() ([]DateRange, error) {
	return SplitRange(p.Start, p.End, p.Granularity)
}

// SplitRange splits [start, end] into chunks aligned on calendar boundaries
// of g. The first chunk starts at start and the last ends at end.
func SplitRange(start, end time.Time, g Granularity) ([]DateRange, error) {
	start = truncateDay(start)
	end = truncateDay(end)
	if end.Before(start) {
		return nil, fmt.Errorf("range end %s before start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}

	var chunks []DateRange
	for cur := start; !cur.After(end); {
		var next time.Time
		switch g {
		case Year:
			next = time.Date(cur.Year()+1, time.January, 1, 0, 0, 0, 0, cur.Location())
		case Month:
			next = time.Date(cur.Year(), cur.Month()+1, 1, 0, 0, 0, 0, cur.Location())
		case Day:
			next = cur.AddDate(0, 0, 1)
		default:
			return nil, fmt.Errorf("unknown granularity %q", g)
		}
		last := next.AddDate(0, 0, -1)
		if last.After(end) {
			last = end
		}
		chunks = append(chunks, DateRange{Start: cur, End: last})
		cur = next
	}
	return chunks, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
