package service

import (
	"time"

	"github.com/timmy/timesheet/internal/domain"
)

// WeekKey identifies a task's ISO week.
type WeekKey struct {
	TaskID uint
	Week   int
	Year   int
}

// WeekGroup is the set of entries sharing a WeekKey.
type WeekGroup struct {
	Key     WeekKey
	Entries []domain.WorkEntry
}

// EntryIDs returns the IDs of the group's entries in order.
func (g *WeekGroup) EntryIDs() []uint {
	ids := make([]uint, 0, len(g.Entries))
	for _, e := range g.Entries {
		ids = append(ids, e.ID)
	}
	return ids
}

// ISOWeek returns the ISO 8601 week number and week-year of t's calendar day.
// The day is moved to the Thursday of its Monday-based week; that Thursday's
// year is the week-year and ceil(dayOfYear/7) is the week.
func ISOWeek(t time.Time) (week, year int) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	thursday := day.AddDate(0, 0, 4-weekday)
	return (thursday.YearDay() + 6) / 7, thursday.Year()
}

// WeekKeyOf returns the grouping key of an entry. Entries without a task use task 0.
func WeekKeyOf(e *domain.WorkEntry) WeekKey {
	var taskID uint
	if e.TaskID != nil {
		taskID = *e.TaskID
	}
	week, year := ISOWeek(e.WorkDate.Time)
	return WeekKey{TaskID: taskID, Week: week, Year: year}
}

// GroupEntries partitions entries by (task, ISO week, year). Groups appear in
// the order their first entry appears; entries keep their relative order.
func GroupEntries(entries []domain.WorkEntry) []WeekGroup {
	index := make(map[WeekKey]int)
	var groups []WeekGroup
	for i := range entries {
		key := WeekKeyOf(&entries[i])
		pos, ok := index[key]
		if !ok {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, WeekGroup{Key: key})
		}
		groups[pos].Entries = append(groups[pos].Entries, entries[i])
	}
	return groups
}
