package scheduling

import "sort"

// ConflictRecord reports a student holding two or more exams on one day.
type ConflictRecord struct {
	StudentID string   `json:"studentId"`
	Date      Date     `json:"date"`
	ExamIDs   []string `json:"examIds"`
}

// DetectConflicts groups, per student, the exams scheduled on each day and
// emits one record per (student, day) with at least two exams. Records are
// ordered by student roster order then date; exam lists follow roster order.
func DetectConflicts(roster *Roster, a Assignment) []ConflictRecord {
	if roster == nil || len(a) == 0 {
		return nil
	}
	exams := make([]string, 0, len(a))
	for exam := range a {
		exams = append(exams, exam)
	}
	sort.SliceStable(exams, func(i, j int) bool {
		return roster.position(exams[i]) < roster.position(exams[j])
	})

	type key struct {
		student string
		day     Date
	}
	grouped := make(map[key][]string)
	for _, exam := range exams {
		day := a[exam]
		for _, student := range roster.Students(exam) {
			k := key{student: student, day: day}
			grouped[k] = append(grouped[k], exam)
		}
	}

	studentRank := make(map[string]int)
	for i, s := range roster.people {
		studentRank[s] = i
	}

	var records []ConflictRecord
	for k, list := range grouped {
		if len(list) < 2 {
			continue
		}
		records = append(records, ConflictRecord{StudentID: k.student, Date: k.day, ExamIDs: list})
	}
	sort.Slice(records, func(i, j int) bool {
		ri, rj := studentRank[records[i].StudentID], studentRank[records[j].StudentID]
		if ri != rj {
			return ri < rj
		}
		return records[i].Date.Before(records[j].Date)
	})
	return records
}
