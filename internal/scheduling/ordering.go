package scheduling

import "sort"

// Assignment maps an exam to its scheduled day.
type Assignment map[string]Date

// Clone returns an independent copy.
func (a Assignment) Clone() Assignment {
	out := make(Assignment, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// ScheduleEntry is the date-sorted presentation row of an assignment.
type ScheduleEntry struct {
	Date        Date   `json:"date"`
	ExamID      string `json:"examId"`
	DisplayName string `json:"displayName"`
	Enrollment  int    `json:"enrollment"`
}

// orderByEnrollment returns the exams sorted by enrollment descending. The
// sort is stable so equal sizes keep their input order, which keeps runs
// deterministic.
func orderByEnrollment(roster *Roster, exams []string) []string {
	out := make([]string, len(exams))
	copy(out, exams)
	sort.SliceStable(out, func(i, j int) bool {
		return roster.Size(out[i]) > roster.Size(out[j])
	})
	return out
}

// unassigned lists roster exams without a day, in roster order.
func unassigned(roster *Roster, a Assignment) []string {
	var out []string
	for _, exam := range roster.exams {
		if _, ok := a[exam]; !ok {
			out = append(out, exam)
		}
	}
	return out
}

// Project builds schedule entries sorted by date, then roster order.
func Project(roster *Roster, a Assignment) []ScheduleEntry {
	entries := make([]ScheduleEntry, 0, len(a))
	for exam, day := range a {
		entries = append(entries, ScheduleEntry{
			Date:        day,
			ExamID:      exam,
			DisplayName: roster.Name(exam),
			Enrollment:  roster.Size(exam),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Date != entries[j].Date {
			return entries[i].Date.Before(entries[j].Date)
		}
		pi, pj := roster.position(entries[i].ExamID), roster.position(entries[j].ExamID)
		if pi != pj {
			return pi < pj
		}
		return entries[i].ExamID < entries[j].ExamID
	})
	return entries
}
