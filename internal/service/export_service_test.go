package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-exam-scheduler/internal/dto"
	appErrors "github.com/noah-isme/sma-exam-scheduler/pkg/errors"
	"github.com/noah-isme/sma-exam-scheduler/pkg/export"
	"github.com/noah-isme/sma-exam-scheduler/pkg/storage"
)

func sampleRun(t *testing.T) *dto.ExamScheduleRun {
	t.Helper()
	svc, _ := newExamScheduleServiceFixture(nil)
	req, err := svc.BuildRequest(context.Background(), dto.GenerateExamScheduleRequest{
		FirstDate: "2025-05-12",
		LastDate:  "2025-05-13",
		Roster:    sharedStudentRoster(),
	})
	require.NoError(t, err)
	return svc.Compute(req)
}

func newExportServiceForTest(t *testing.T) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}
	svc := NewExportService(store, signer, cfg, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	return svc, store
}

func readCSV(t *testing.T, content []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(content)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestNormalizeQuery(t *testing.T) {
	q, err := NormalizeQuery(dto.ExportScheduleQuery{Format: " PDF "})
	require.NoError(t, err)
	assert.Equal(t, dto.ExportScheduleQuery{Solution: dto.SolutionExtended, Format: ExportFormatPDF, Table: ExportTableSchedule}, q)

	_, err = NormalizeQuery(dto.ExportScheduleQuery{Solution: "greedy"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = NormalizeQuery(dto.ExportScheduleQuery{Format: "xlsx"})
	assert.Error(t, err)
}

func TestExportServiceRenderScheduleCSV(t *testing.T) {
	svc, _ := newExportServiceForTest(t)
	run := sampleRun(t)

	file, err := svc.Render(run, dto.ExportScheduleQuery{})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, "exam_schedule_extended_"+run.Summary.RunID[:8]+".csv", file.Filename)

	records := readCSV(t, file.Content)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"Scheduled Date", "Exam ID", "Course", "# of Students"}, records[0])
	assert.Equal(t, []string{"2025-05-12", "EX1", "Biology", "1"}, records[1])
	assert.Equal(t, []string{"2025-05-14", "EX3", "Physics", "1"}, records[3])
}

func TestExportServiceRenderConflictsCSV(t *testing.T) {
	svc, _ := newExportServiceForTest(t)
	run := sampleRun(t)

	file, err := svc.Render(run, dto.ExportScheduleQuery{Solution: dto.SolutionForced, Table: ExportTableConflicts})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(file.Filename, "exam_conflicts_forced_"))

	records := readCSV(t, file.Content)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Student ID", "Date", "Exams"}, records[0])
	assert.Equal(t, []string{"S1", "2025-05-12", "EX1, EX3"}, records[1])

	extended, err := svc.Render(run, dto.ExportScheduleQuery{Table: ExportTableConflicts})
	require.NoError(t, err)
	assert.Len(t, readCSV(t, extended.Content), 1)
}

func TestExportServiceRenderPDF(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	file, err := svc.Render(sampleRun(t), dto.ExportScheduleQuery{Solution: dto.SolutionForced, Format: ExportFormatPDF})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Content, []byte("%PDF")))
}

func TestExportServiceStoreAndOpen(t *testing.T) {
	svc, _ := newExportServiceForTest(t)
	file := &dto.ExportFile{Filename: "exam_schedule_extended.csv", ContentType: "text/csv", Content: []byte("a,b\n")}

	stored, err := svc.Store("job-1", "run-1", file)
	require.NoError(t, err)
	assert.Equal(t, "runs/run-1/job-1-exam_schedule_extended.csv", stored.RelativePath)
	assert.Equal(t, "/api/v1/exam-schedules/downloads/"+stored.Token, stored.URL)

	jobID, relPath, _, err := svc.ParseToken(stored.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)

	f, err := svc.Open(relPath)
	require.NoError(t, err)
	defer f.Close()
	content, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(content))
}

func TestExportServiceStoreRequiresStorage(t *testing.T) {
	svc := NewExportService(nil, nil, ExportConfig{}, nil, nil, nil)
	_, err := svc.Store("job", "run", &dto.ExportFile{Filename: "x.csv"})
	assert.Error(t, err)

	removed, err := svc.Cleanup()
	assert.NoError(t, err)
	assert.Empty(t, removed)
}
