package view

import "time"

// Period is a preset reporting window for the sales screen.
type Period int

const (
	PeriodToday Period = iota
	PeriodThisWeek
	PeriodThisMonth
	PeriodLastMonth
	PeriodAll
	periodCount
)

func (p Period) String() string {
	switch p {
	case PeriodToday:
		return "Today"
	case PeriodThisWeek:
		return "This Week"
	case PeriodThisMonth:
		return "This Month"
	case PeriodLastMonth:
		return "Last Month"
	case PeriodAll:
		return "All Time"
	}

	return "Unknown"
}

func (p Period) Next() Period {
	return (p + 1) % periodCount
}

// Range returns the half-open window [from, to) containing now. Both are nil
// for PeriodAll. Weeks start on Monday.
func (p Period) Range(now time.Time) (*time.Time, *time.Time) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var from, to time.Time

	switch p {
	case PeriodToday:
		from, to = day, day.AddDate(0, 0, 1)
	case PeriodThisWeek:
		offset := int(now.Weekday())
		if offset == 0 {
			offset = 7
		}

		from = day.AddDate(0, 0, -offset+1)
		to = from.AddDate(0, 0, 7)
	case PeriodThisMonth:
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		to = from.AddDate(0, 1, 0)
	case PeriodLastMonth:
		to = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		from = to.AddDate(0, -1, 0)
	default:
		return nil, nil
	}

	return &from, &to
}
