package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scheduleDataset() Dataset {
	return Dataset{
		Headers: []string{"Scheduled Date", "Exam ID", "Course", "# of Students"},
		Rows: []map[string]string{
			{"Scheduled Date": "2025-05-12", "Exam ID": "EX1", "Course": "Biology, Advanced", "# of Students": "3"},
			{"Scheduled Date": "2025-05-13", "Exam ID": "EX2", "# of Students": "1"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(scheduleDataset())
	require.NoError(t, err)

	expected := "Scheduled Date,Exam ID,Course,# of Students\n" +
		"2025-05-12,EX1,\"Biology, Advanced\",3\n" +
		"2025-05-13,EX2,,1\n"
	assert.Equal(t, expected, string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRendersSections(t *testing.T) {
	conflicts := Dataset{Headers: []string{"Student ID", "Date", "Exams"}}

	out, err := NewPDFExporter().Render("Exam Schedule",
		Section{Title: "Schedule", Data: scheduleDataset(), Widths: []float64{2, 1, 4, 1}},
		Section{Title: "Conflicts", Data: conflicts},
	)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRejectsEmptyInput(t *testing.T) {
	_, err := NewPDFExporter().Render("x")
	assert.Error(t, err)

	_, err = NewPDFExporter().Render("x", Section{Title: "empty"})
	assert.Error(t, err)
}

func TestColumnWidthsFallsBackToEqualSplit(t *testing.T) {
	widths := columnWidths(Section{Data: Dataset{Headers: []string{"a", "b"}}, Widths: []float64{1}})
	assert.Equal(t, []float64{95, 95}, widths)
}
