package dto

import (
	"time"

	"github.com/noah-isme/sma-exam-scheduler/internal/models"
	"github.com/noah-isme/sma-exam-scheduler/internal/scheduling"
)

// Plan selectors for result views and exports.
const (
	SolutionExtended = "extended"
	SolutionForced   = "forced"
)

// FixedScheduleRequest pins one exam to a date.
type FixedScheduleRequest struct {
	ExamID string `json:"examId" validate:"required,max=64"`
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
}

// GenerateExamScheduleRequest is the payload for planning an exam period. Either
// Roster or TermID must be supplied; ExamIDs narrows a term roster.
type GenerateExamScheduleRequest struct {
	FirstDate      string                  `json:"firstDate" validate:"required,datetime=2006-01-02"`
	LastDate       string                  `json:"lastDate" validate:"required,datetime=2006-01-02"`
	ExcludedDates  []string                `json:"excludedDates" validate:"omitempty,dive,datetime=2006-01-02"`
	FixedSchedules []FixedScheduleRequest  `json:"fixedSchedules" validate:"omitempty,dive"`
	Roster         []models.ExamEnrollment `json:"roster" validate:"omitempty,dive"`
	TermID         string                  `json:"termId" validate:"omitempty,max=64"`
	ExamIDs        []string                `json:"examIds" validate:"omitempty,dive,required"`
}

// UploadExamScheduleForm carries the multipart fields sent next to a roster CSV.
// Excluded dates are a comma list; fixed schedules are EXAM=YYYY-MM-DD pairs.
type UploadExamScheduleForm struct {
	FirstDate      string `form:"first_date"`
	LastDate       string `form:"last_date"`
	ExcludedDates  string `form:"excluded_dates"`
	FixedSchedules string `form:"fixed_schedules"`
}

// ExtendedSummary condenses the widened plan.
type ExtendedSummary struct {
	LastDate      scheduling.Date `json:"lastDate"`
	ExtensionDays int             `json:"extensionDays"`
	Complete      bool            `json:"complete"`
	Unplaced      []string        `json:"unplaced,omitempty"`
}

// ForcedSummary condenses the in-window conflict-minimising plan.
type ForcedSummary struct {
	TotalConflicts   int      `json:"totalConflicts"`
	ImpactedStudents int      `json:"impactedStudents"`
	Unplaced         []string `json:"unplaced,omitempty"`
}

// ExamScheduleSummary is returned right after planning.
type ExamScheduleSummary struct {
	RunID          string                       `json:"runId"`
	CreatedAt      time.Time                    `json:"createdAt"`
	ExpiresAt      time.Time                    `json:"expiresAt"`
	FirstDate      scheduling.Date              `json:"firstDate"`
	LastDate       scheduling.Date              `json:"lastDate"`
	Exams          int                          `json:"exams"`
	Students       int                          `json:"students"`
	AvailableDays  int                          `json:"availableDays"`
	NormalComplete bool                         `json:"normalComplete"`
	Extended       ExtendedSummary              `json:"extended"`
	Forced         ForcedSummary                `json:"forced"`
	Skipped        []scheduling.SkippedOverride `json:"skippedOverrides,omitempty"`
	Warnings       []string                     `json:"warnings,omitempty"`
}

// ExtendedScheduleView is the default plan shown to schedulers.
type ExtendedScheduleView struct {
	RunID         string                     `json:"runId"`
	Entries       []scheduling.ScheduleEntry `json:"entries"`
	LastDate      scheduling.Date            `json:"extendedLastDate"`
	ExtensionDays int                        `json:"extensionDays"`
	Complete      bool                       `json:"complete"`
	Unplaced      []string                   `json:"unplaced,omitempty"`
	Warning       string                     `json:"warning,omitempty"`
	Calendar      []scheduling.CalendarMonth `json:"calendar"`
}

// ForcedScheduleView is the in-window plan with conflict details.
type ForcedScheduleView struct {
	RunID            string                       `json:"runId"`
	Entries          []scheduling.ScheduleEntry   `json:"entries"`
	TotalConflicts   int                          `json:"totalConflicts"`
	ImpactedStudents int                          `json:"impactedStudents"`
	Conflicts        []scheduling.ConflictRecord  `json:"conflicts"`
	Skipped          []scheduling.SkippedOverride `json:"skippedOverrides,omitempty"`
	Unplaced         []string                     `json:"unplaced,omitempty"`
	Warning          string                       `json:"warning,omitempty"`
	Calendar         []scheduling.CalendarMonth   `json:"calendar"`
}

// ExamScheduleRun is everything kept for a run until it expires.
type ExamScheduleRun struct {
	Summary  ExamScheduleSummary  `json:"summary"`
	Extended ExtendedScheduleView `json:"extended"`
	Forced   ForcedScheduleView   `json:"forced"`
}

// ExportScheduleQuery selects what to render for a run.
type ExportScheduleQuery struct {
	Solution string `form:"solution" json:"solution" validate:"omitempty,oneof=extended forced"`
	Format   string `form:"format" json:"format" validate:"omitempty,oneof=csv pdf"`
	Table    string `form:"table" json:"table" validate:"omitempty,oneof=schedule conflicts"`
}

// ExportFile is a rendered document ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ExportJobStatus values.
const (
	ExportJobQueued     = "QUEUED"
	ExportJobProcessing = "PROCESSING"
	ExportJobFinished   = "FINISHED"
	ExportJobFailed     = "FAILED"
)

// ExportJobResponse describes an asynchronous export.
type ExportJobResponse struct {
	JobID       string              `json:"jobId"`
	RunID       string              `json:"runId"`
	Query       ExportScheduleQuery `json:"query"`
	Status      string              `json:"status"`
	Error       string              `json:"error,omitempty"`
	DownloadURL string              `json:"downloadUrl,omitempty"`
	ExpiresAt   *time.Time          `json:"expiresAt,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	FinishedAt  *time.Time          `json:"finishedAt,omitempty"`
}
