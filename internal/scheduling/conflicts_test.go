package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectConflictsGroupsPerStudentAndDay(t *testing.T) {
	roster := rosterOfExams(
		[]string{"EX1", "S1", "S2"},
		[]string{"EX2", "S1", "S2"},
		[]string{"EX3", "S1"},
		[]string{"EX4", "S3"},
	)
	mon, tue := day(t, "2025-05-12"), day(t, "2025-05-13")
	records := DetectConflicts(roster, Assignment{"EX3": mon, "EX1": mon, "EX2": mon, "EX4": tue})

	require.Len(t, records, 2)
	assert.Equal(t, ConflictRecord{StudentID: "S1", Date: mon, ExamIDs: []string{"EX1", "EX2", "EX3"}}, records[0])
	assert.Equal(t, ConflictRecord{StudentID: "S2", Date: mon, ExamIDs: []string{"EX1", "EX2"}}, records[1])
}

func TestDetectConflictsIgnoresSingletonDays(t *testing.T) {
	roster := rosterOfExams([]string{"EX1", "S1"}, []string{"EX2", "S1"})

	records := DetectConflicts(roster, Assignment{"EX1": day(t, "2025-05-12"), "EX2": day(t, "2025-05-13")})

	assert.Empty(t, records)
	assert.Empty(t, DetectConflicts(roster, nil))
}

func TestNewRosterDeduplicatesAndKeepsFirstName(t *testing.T) {
	roster := NewRoster([]Enrollment{
		{ExamID: "EX1", StudentID: "S1", CourseName: "Biology"},
		{ExamID: "EX1", StudentID: "S1", CourseName: "Biology"},
		{ExamID: "EX2", StudentID: "S2", CourseName: "Chemistry"},
		{ExamID: "EX1", StudentID: "S3", CourseName: "Bio II"},
		{ExamID: "", StudentID: "S4", CourseName: "Ignored"},
	})

	assert.Equal(t, []string{"EX1", "EX2"}, roster.Exams())
	assert.Equal(t, []string{"S1", "S3"}, roster.Students("EX1"))
	assert.Equal(t, "Biology", roster.Name("EX1"))
	assert.Equal(t, 2, roster.Size("EX1"))
	assert.Equal(t, []string{"S1", "S2", "S3"}, roster.StudentIDs())
	assert.False(t, roster.Has("EX9"))
	assert.Equal(t, 2, roster.Len())
}

func TestCalendarMonthsSpansScheduledMonths(t *testing.T) {
	roster := rosterOfExams([]string{"EX1", "S1"}, []string{"EX2", "S2"}, []string{"EX3", "S3"})
	months := CalendarMonths(roster, Assignment{
		"EX1": day(t, "2025-05-12"),
		"EX2": day(t, "2025-05-12"),
		"EX3": day(t, "2025-06-02"),
	})

	require.Len(t, months, 2)
	may := months[0]
	assert.Equal(t, time.May, may.Month)
	assert.Equal(t, "May 2025", may.Title)
	for _, week := range may.Weeks {
		assert.Len(t, week, 7)
	}
	// May 1st 2025 is a Thursday.
	assert.Equal(t, 0, may.Weeks[0][2].Day)
	assert.Equal(t, 1, may.Weeks[0][3].Day)

	cell := may.Weeks[2][0]
	assert.Equal(t, 12, cell.Day)
	assert.Equal(t, CellMultiple, cell.State)
	assert.Equal(t, []string{"EX1", "EX2"}, cell.ExamIDs)

	june := months[1]
	assert.Equal(t, time.June, june.Month)
	assert.Equal(t, CellSingle, june.Weeks[1][0].State)
	assert.Equal(t, 2, june.Weeks[1][0].Day)
}

func TestCalendarMonthsEmptyAssignment(t *testing.T) {
	assert.Nil(t, CalendarMonths(NewRoster(nil), Assignment{}))
}
