package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-exam-scheduler/internal/dto"
	"github.com/noah-isme/sma-exam-scheduler/internal/service"
	appErrors "github.com/noah-isme/sma-exam-scheduler/pkg/errors"
	"github.com/noah-isme/sma-exam-scheduler/pkg/response"
)

const defaultMaxUploadBytes int64 = 5 << 20

type examScheduler interface {
	Generate(ctx context.Context, req dto.GenerateExamScheduleRequest) (*dto.ExamScheduleSummary, error)
	Extended(ctx context.Context, runID string) (*dto.ExtendedScheduleView, error)
	Forced(ctx context.Context, runID string) (*dto.ForcedScheduleView, error)
	Run(ctx context.Context, runID string) (*dto.ExamScheduleRun, error)
}

type scheduleRenderer interface {
	Render(run *dto.ExamScheduleRun, q dto.ExportScheduleQuery) (*dto.ExportFile, error)
}

type exportJobs interface {
	CreateJob(ctx context.Context, runID string, q dto.ExportScheduleQuery) (*dto.ExportJobResponse, error)
	Status(ctx context.Context, jobID string) (*dto.ExportJobResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error)
}

// ExamScheduleHandler exposes exam planning, result views and exports.
type ExamScheduleHandler struct {
	scheduler      examScheduler
	renderer       scheduleRenderer
	jobs           exportJobs
	maxUploadBytes int64
}

// NewExamScheduleHandler constructs the handler. jobs may be nil when export
// storage is not configured; the async export routes then answer 503.
func NewExamScheduleHandler(scheduler examScheduler, renderer scheduleRenderer, jobs exportJobs, maxUploadBytes int64) *ExamScheduleHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &ExamScheduleHandler{scheduler: scheduler, renderer: renderer, jobs: jobs, maxUploadBytes: maxUploadBytes}
}

// Generate godoc
// @Summary Plan an exam period
// @Description Runs the conflict-free, extended and forced strategies and keeps the run for later retrieval.
// @Tags ExamSchedules
// @Accept json
// @Produce json
// @Param payload body dto.GenerateExamScheduleRequest true "Exam window, overrides and roster"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /exam-schedules [post]
func (h *ExamScheduleHandler) Generate(c *gin.Context) {
	var req dto.GenerateExamScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid exam schedule payload"))
		return
	}
	h.generate(c, req)
}

// Upload godoc
// @Summary Plan an exam period from a roster CSV
// @Tags ExamSchedules
// @Accept multipart/form-data
// @Produce json
// @Param roster formData file true "CSV with Exam ID, Student ID, Course Name"
// @Param first_date formData string true "First exam day (YYYY-MM-DD)"
// @Param last_date formData string true "Last exam day (YYYY-MM-DD)"
// @Param excluded_dates formData string false "Comma separated dates"
// @Param fixed_schedules formData string false "Comma separated EXAM_ID=YYYY-MM-DD pairs"
// @Success 201 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /exam-schedules/upload [post]
func (h *ExamScheduleHandler) Upload(c *gin.Context) {
	// Multipart overhead is small next to the file, so the body cap carries a
	// little headroom over the file cap.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+64<<10)

	var form dto.UploadExamScheduleForm
	if err := c.ShouldBind(&form); err != nil {
		response.Error(c, uploadError(err, "invalid upload form"))
		return
	}
	fileHeader, err := c.FormFile("roster")
	if err != nil {
		response.Error(c, uploadError(err, "roster file is required"))
		return
	}
	if fileHeader.Size > h.maxUploadBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("roster file exceeds %d bytes", h.maxUploadBytes)))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open roster file"))
		return
	}
	defer src.Close()

	roster, err := service.ParseRosterCSV(src, 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	fixed, err := service.ParseFixedSchedules(form.FixedSchedules)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.generate(c, dto.GenerateExamScheduleRequest{
		FirstDate:      form.FirstDate,
		LastDate:       form.LastDate,
		ExcludedDates:  service.SplitDateList(form.ExcludedDates),
		FixedSchedules: fixed,
		Roster:         roster,
	})
}

func (h *ExamScheduleHandler) generate(c *gin.Context, req dto.GenerateExamScheduleRequest) {
	summary, err := h.scheduler.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	var meta map[string]interface{}
	if claims := claimsFromContext(c); claims != nil {
		meta = map[string]interface{}{"requestedBy": claims.UserID}
	}
	response.JSON(c, http.StatusCreated, summary, meta)
}

// Extended godoc
// @Summary Get the extended (conflict-free) plan of a run
// @Tags ExamSchedules
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /exam-schedules/{id} [get]
func (h *ExamScheduleHandler) Extended(c *gin.Context) {
	view, err := h.scheduler.Extended(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// Forced godoc
// @Summary Get the forced in-window plan of a run with its conflicts
// @Tags ExamSchedules
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Router /exam-schedules/{id}/forced [get]
func (h *ExamScheduleHandler) Forced(c *gin.Context) {
	view, err := h.scheduler.Forced(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// Export godoc
// @Summary Download a run as CSV or PDF
// @Tags ExamSchedules
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Run ID"
// @Param solution query string false "extended or forced"
// @Param format query string false "csv or pdf"
// @Param table query string false "schedule or conflicts (CSV only)"
// @Success 200 {file} file
// @Router /exam-schedules/{id}/export [get]
func (h *ExamScheduleHandler) Export(c *gin.Context) {
	var q dto.ExportScheduleQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid export query"))
		return
	}
	run, err := h.scheduler.Run(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.renderer.Render(run, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

// CreateExport godoc
// @Summary Queue an export of a run
// @Tags ExamSchedules
// @Accept json
// @Produce json
// @Param id path string true "Run ID"
// @Param payload body dto.ExportScheduleQuery false "Export selection"
// @Success 202 {object} response.Envelope
// @Router /exam-schedules/{id}/exports [post]
func (h *ExamScheduleHandler) CreateExport(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.New("EXPORTS_DISABLED", http.StatusServiceUnavailable, "export storage is not configured"))
		return
	}
	var q dto.ExportScheduleQuery
	bind := c.ShouldBind
	if c.Request.ContentLength == 0 {
		bind = c.ShouldBindQuery
	}
	if err := bind(&q); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid export selection"))
		return
	}
	job, err := h.jobs.CreateJob(c.Request.Context(), c.Param("id"), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// ExportStatus godoc
// @Summary Get the status of an export job
// @Tags ExamSchedules
// @Produce json
// @Param jobId path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Router /exam-schedules/exports/{jobId} [get]
func (h *ExamScheduleHandler) ExportStatus(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export job not found"))
		return
	}
	job, err := h.jobs.Status(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job)
}

// Download godoc
// @Summary Download a finished export through its signed token
// @Tags ExamSchedules
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /exam-schedules/downloads/{token} [get]
func (h *ExamScheduleHandler) Download(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export not found"))
		return
	}
	download, err := h.jobs.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	size := int64(-1)
	if info, statErr := download.File.Stat(); statErr == nil {
		size = info.Size()
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", download.Filename))
	c.Header("Cache-Control", "no-store")
	c.Header("Expires", download.ExpiresAt.UTC().Format(http.TimeFormat))
	c.DataFromReader(http.StatusOK, size, download.ContentType, download.File, nil)
}

func uploadError(err error, message string) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return appErrors.Clone(appErrors.ErrPayloadTooLarge, "upload exceeds the size limit")
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
}
