package scheduling

// Enrollment is one raw roster row.
type Enrollment struct {
	ExamID     string
	StudentID  string
	CourseName string
}

// Roster holds the lookups derived from enrollment rows. It is immutable once
// built and safe for concurrent readers.
type Roster struct {
	exams    []string
	students map[string][]string
	names    map[string]string
	order    map[string]int
	people   []string
}

// NewRoster derives exam -> students and exam -> name from raw rows. Exams keep
// their first-appearance order, students are deduplicated per exam, and the
// display name comes from the first row seen for an exam.
func NewRoster(rows []Enrollment) *Roster {
	r := &Roster{
		students: make(map[string][]string),
		names:    make(map[string]string),
		order:    make(map[string]int),
	}
	seen := make(map[string]map[string]struct{})
	people := make(map[string]struct{})
	for _, row := range rows {
		if row.ExamID == "" {
			continue
		}
		if _, ok := r.order[row.ExamID]; !ok {
			r.order[row.ExamID] = len(r.exams)
			r.exams = append(r.exams, row.ExamID)
			r.names[row.ExamID] = row.CourseName
			r.students[row.ExamID] = nil
			seen[row.ExamID] = make(map[string]struct{})
		}
		if row.StudentID == "" {
			continue
		}
		if _, dup := seen[row.ExamID][row.StudentID]; !dup {
			seen[row.ExamID][row.StudentID] = struct{}{}
			r.students[row.ExamID] = append(r.students[row.ExamID], row.StudentID)
		}
		if _, ok := people[row.StudentID]; !ok {
			people[row.StudentID] = struct{}{}
			r.people = append(r.people, row.StudentID)
		}
	}
	return r
}

// Exams returns exam identifiers in first-appearance order.
func (r *Roster) Exams() []string {
	out := make([]string, len(r.exams))
	copy(out, r.exams)
	return out
}

// StudentIDs returns every student in first-appearance order.
func (r *Roster) StudentIDs() []string {
	out := make([]string, len(r.people))
	copy(out, r.people)
	return out
}

// Students returns the enrolled students of an exam.
func (r *Roster) Students(examID string) []string {
	return r.students[examID]
}

// Name returns the display name of an exam.
func (r *Roster) Name(examID string) string {
	return r.names[examID]
}

// Size returns the enrollment count of an exam.
func (r *Roster) Size(examID string) int {
	return len(r.students[examID])
}

// Has reports whether the exam exists in the roster.
func (r *Roster) Has(examID string) bool {
	_, ok := r.order[examID]
	return ok
}

// Len returns the number of exams.
func (r *Roster) Len() int {
	return len(r.exams)
}

// position is the roster index of an exam; unknown exams sort last.
func (r *Roster) position(examID string) int {
	if idx, ok := r.order[examID]; ok {
		return idx
	}
	return len(r.exams)
}
