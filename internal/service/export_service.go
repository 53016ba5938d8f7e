package service

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-exam-scheduler/internal/dto"
	"github.com/noah-isme/sma-exam-scheduler/internal/scheduling"
	appErrors "github.com/noah-isme/sma-exam-scheduler/pkg/errors"
	"github.com/noah-isme/sma-exam-scheduler/pkg/export"
	"github.com/noah-isme/sma-exam-scheduler/pkg/storage"
)

// Export formats and tables.
const (
	ExportFormatCSV       = "csv"
	ExportFormatPDF       = "pdf"
	ExportTableSchedule   = "schedule"
	ExportTableConflicts  = "conflicts"
	scheduleColDate       = "Scheduled Date"
	scheduleColExam       = "Exam ID"
	scheduleColCourse     = "Course"
	scheduleColStudents   = "# of Students"
	conflictColStudent    = "Student ID"
	conflictColDate       = "Date"
	conflictColExams      = "Exams"
	downloadRoutePath     = "/exam-schedules/downloads/"
	defaultExportPrefix   = "/api/v1"
	defaultExportRetained = 24 * time.Hour
)

type fileStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(title string, sections ...export.Section) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// StoredExport describes a rendered file persisted for download.
type StoredExport struct {
	RelativePath string
	Token        string
	URL          string
	ExpiresAt    time.Time
}

// ExportService renders schedule runs to CSV or PDF and persists them for
// signed downloads.
type ExportService struct {
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService. storage and signer may be nil
// for callers that only render in memory, such as the CLI.
func NewExportService(store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = defaultExportRetained
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		storage: store,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// NormalizeQuery fills defaults and rejects unknown values.
func NormalizeQuery(q dto.ExportScheduleQuery) (dto.ExportScheduleQuery, error) {
	q.Solution = strings.ToLower(strings.TrimSpace(q.Solution))
	q.Format = strings.ToLower(strings.TrimSpace(q.Format))
	q.Table = strings.ToLower(strings.TrimSpace(q.Table))
	if q.Solution == "" {
		q.Solution = dto.SolutionExtended
	}
	if q.Format == "" {
		q.Format = ExportFormatCSV
	}
	if q.Table == "" {
		q.Table = ExportTableSchedule
	}
	if q.Solution != dto.SolutionExtended && q.Solution != dto.SolutionForced {
		return q, appErrors.Clone(appErrors.ErrValidation, "solution must be extended or forced")
	}
	if q.Format != ExportFormatCSV && q.Format != ExportFormatPDF {
		return q, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if q.Table != ExportTableSchedule && q.Table != ExportTableConflicts {
		return q, appErrors.Clone(appErrors.ErrValidation, "table must be schedule or conflicts")
	}
	return q, nil
}

// Render builds the requested document. CSV holds one table; PDF holds the
// schedule and, when any exist, the conflicts.
func (s *ExportService) Render(run *dto.ExamScheduleRun, q dto.ExportScheduleQuery) (*dto.ExportFile, error) {
	q, err := NormalizeQuery(q)
	if err != nil {
		return nil, err
	}
	entries, conflicts := solutionRows(run, q.Solution)
	schedule := ScheduleDataset(entries)
	conflictData := ConflictDataset(conflicts)

	file := &dto.ExportFile{}
	switch q.Format {
	case ExportFormatCSV:
		data := schedule
		base := "exam_schedule"
		if q.Table == ExportTableConflicts {
			data, base = conflictData, "exam_conflicts"
		}
		file.Content, err = s.csv.Render(data)
		file.ContentType = "text/csv"
		file.Filename = exportFilename(base, q.Solution, run.Summary.RunID, "csv")
	case ExportFormatPDF:
		sections := []export.Section{{Title: "Exam Schedule", Data: schedule, Widths: []float64{2, 1.5, 4, 1.5}}}
		if len(conflicts) > 0 {
			sections = append(sections, export.Section{Title: "Conflicts", Data: conflictData, Widths: []float64{2, 2, 5}})
		}
		file.Content, err = s.pdf.Render(pdfTitle(run, q.Solution), sections...)
		file.ContentType = "application/pdf"
		file.Filename = exportFilename("exam_schedule", q.Solution, run.Summary.RunID, "pdf")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return file, nil
}

// Store persists a rendered file under the job and signs a download URL.
func (s *ExportService) Store(jobID, runID string, file *dto.ExportFile) (*StoredExport, error) {
	if s.storage == nil || s.signer == nil {
		return nil, fmt.Errorf("export storage not configured")
	}
	relPath, err := s.storage.Save(fmt.Sprintf("runs/%s/%s-%s", runID, jobID, file.Filename), file.Content)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(jobID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = defaultExportPrefix
	}
	return &StoredExport{
		RelativePath: relPath,
		Token:        token,
		URL:          prefix + downloadRoutePath + token,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	if s.signer == nil {
		return "", "", time.Time{}, fmt.Errorf("export signer not configured")
	}
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes stored exports older than the retention window.
func (s *ExportService) Cleanup() ([]string, error) {
	if s.storage == nil {
		return nil, nil
	}
	return s.storage.CleanupOlderThan(s.cfg.ResultTTL)
}

// ScheduleDataset projects schedule entries into the export columns.
func ScheduleDataset(entries []scheduling.ScheduleEntry) export.Dataset {
	data := export.Dataset{Headers: []string{scheduleColDate, scheduleColExam, scheduleColCourse, scheduleColStudents}}
	for _, e := range entries {
		data.Rows = append(data.Rows, map[string]string{
			scheduleColDate:     e.Date.String(),
			scheduleColExam:     e.ExamID,
			scheduleColCourse:   e.DisplayName,
			scheduleColStudents: strconv.Itoa(e.Enrollment),
		})
	}
	return data
}

// ConflictDataset projects conflict records into the export columns.
func ConflictDataset(records []scheduling.ConflictRecord) export.Dataset {
	data := export.Dataset{Headers: []string{conflictColStudent, conflictColDate, conflictColExams}}
	for _, r := range records {
		data.Rows = append(data.Rows, map[string]string{
			conflictColStudent: r.StudentID,
			conflictColDate:    r.Date.String(),
			conflictColExams:   strings.Join(r.ExamIDs, ", "),
		})
	}
	return data
}

func solutionRows(run *dto.ExamScheduleRun, solution string) ([]scheduling.ScheduleEntry, []scheduling.ConflictRecord) {
	if solution == dto.SolutionForced {
		return run.Forced.Entries, run.Forced.Conflicts
	}
	// The extended plan is conflict-free by construction.
	return run.Extended.Entries, nil
}

func pdfTitle(run *dto.ExamScheduleRun, solution string) string {
	if solution == dto.SolutionForced {
		return fmt.Sprintf("Exam Schedule %s to %s (forced, %d conflicts)",
			run.Summary.FirstDate, run.Summary.LastDate, run.Forced.TotalConflicts)
	}
	return fmt.Sprintf("Exam Schedule %s to %s", run.Summary.FirstDate, run.Extended.LastDate)
}

func exportFilename(base, solution, runID, ext string) string {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	if short == "" {
		return fmt.Sprintf("%s_%s.%s", base, solution, ext)
	}
	return fmt.Sprintf("%s_%s_%s.%s", base, solution, short, ext)
}
