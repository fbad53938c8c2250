package planner

import "time"

// WeekRange returns the Monday and Sunday (at midnight, in t's location) of the week containing t.
func WeekRange(t time.Time) (start, end time.Time) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	start = day.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 6)
}
