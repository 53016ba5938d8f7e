package scheduling

import (
	"sort"
	"strconv"
	"time"
)

// CellState classifies a calendar cell by how many exams it holds.
type CellState string

// Calendar cell states.
const (
	CellEmpty    CellState = "EMPTY"
	CellSingle   CellState = "SINGLE"
	CellMultiple CellState = "MULTIPLE"
)

// CalendarCell is one day of a month grid. Day is zero for padding cells.
type CalendarCell struct {
	Day     int       `json:"day"`
	ExamIDs []string  `json:"examIds,omitempty"`
	State   CellState `json:"state"`
}

// CalendarMonth is a Monday-first grid of weeks.
type CalendarMonth struct {
	Year  int              `json:"year"`
	Month time.Month       `json:"month"`
	Title string           `json:"title"`
	Weeks [][]CalendarCell `json:"weeks"`
}

// CalendarMonths builds one grid per month between the earliest and latest
// scheduled day.
func CalendarMonths(roster *Roster, a Assignment) []CalendarMonth {
	if len(a) == 0 {
		return nil
	}
	byDay := make(map[Date][]string)
	var earliest, latest Date
	first := true
	for exam, day := range a {
		byDay[day] = append(byDay[day], exam)
		if first || day.Before(earliest) {
			earliest = day
		}
		if first || day.After(latest) {
			latest = day
		}
		first = false
	}
	for day := range byDay {
		list := byDay[day]
		sort.SliceStable(list, func(i, j int) bool {
			pi, pj := rosterPosition(roster, list[i]), rosterPosition(roster, list[j])
			if pi != pj {
				return pi < pj
			}
			return list[i] < list[j]
		})
	}

	var months []CalendarMonth
	year, month := earliest.Year, earliest.Month
	for year < latest.Year || (year == latest.Year && month <= latest.Month) {
		months = append(months, buildMonth(year, month, byDay))
		if month == time.December {
			year, month = year+1, time.January
		} else {
			month++
		}
	}
	return months
}

func buildMonth(year int, month time.Month, byDay map[Date][]string) CalendarMonth {
	start := NewDate(year, month, 1)
	// Monday-based column of the first day.
	offset := (int(start.Weekday()) + 6) % 7
	next := start.AddDays(32)
	daysInMonth := next.AddDays(-next.Day).Day

	var weeks [][]CalendarCell
	week := make([]CalendarCell, 0, 7)
	for i := 0; i < offset; i++ {
		week = append(week, CalendarCell{State: CellEmpty})
	}
	for d := 1; d <= daysInMonth; d++ {
		exams := byDay[NewDate(year, month, d)]
		cell := CalendarCell{Day: d, ExamIDs: exams, State: CellEmpty}
		switch {
		case len(exams) == 1:
			cell.State = CellSingle
		case len(exams) > 1:
			cell.State = CellMultiple
		}
		week = append(week, cell)
		if len(week) == 7 {
			weeks = append(weeks, week)
			week = make([]CalendarCell, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, CalendarCell{State: CellEmpty})
		}
		weeks = append(weeks, week)
	}
	return CalendarMonth{
		Year:  year,
		Month: month,
		Title: month.String() + " " + strconv.Itoa(year),
		Weeks: weeks,
	}
}

func rosterPosition(roster *Roster, examID string) int {
	if roster == nil {
		return 0
	}
	return roster.position(examID)
}
