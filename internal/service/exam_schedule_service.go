package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-exam-scheduler/internal/dto"
	"github.com/noah-isme/sma-exam-scheduler/internal/models"
	"github.com/noah-isme/sma-exam-scheduler/internal/scheduling"
	appErrors "github.com/noah-isme/sma-exam-scheduler/pkg/errors"
)

const maxWindowDays = 366

type rosterReader interface {
	ListByTerm(ctx context.Context, filter models.RosterFilter) ([]models.ExamEnrollment, error)
	CountByTerm(ctx context.Context, termID string) (int, error)
}

type planner interface {
	Plan(req scheduling.Request) scheduling.Plan
}

// ExamScheduleConfig governs planning limits and result retention.
type ExamScheduleConfig struct {
	ResultTTL     time.Duration
	MaxRosterRows int
}

// ExamScheduleService validates planning requests, runs the engine and keeps
// the resulting views retrievable by run ID.
type ExamScheduleService struct {
	rosters   rosterReader
	engine    planner
	store     ResultStore
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExamScheduleConfig
	now       func() time.Time
}

// NewExamScheduleService wires the scheduler dependencies. rosters may be nil
// when no roster database is configured; requests must then carry the roster.
func NewExamScheduleService(
	rosters rosterReader,
	engine planner,
	store ResultStore,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ExamScheduleConfig,
) *ExamScheduleService {
	if engine == nil {
		engine = scheduling.DefaultEngine()
	}
	if store == nil {
		store = NewMemoryResultStore()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 30 * time.Minute
	}
	return &ExamScheduleService{
		rosters:   rosters,
		engine:    engine,
		store:     store,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Generate plans an exam period and stores every view under a new run ID.
func (s *ExamScheduleService) Generate(ctx context.Context, req dto.GenerateExamScheduleRequest) (*dto.ExamScheduleSummary, error) {
	schedReq, err := s.BuildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	run := s.Compute(schedReq)
	if err := s.store.Save(ctx, run); err != nil {
		return nil, err
	}
	return &run.Summary, nil
}

// Compute runs every strategy for an already validated request and returns the
// views. It does not store the run.
func (s *ExamScheduleService) Compute(req scheduling.Request) *dto.ExamScheduleRun {
	start := time.Now()
	plan := s.engine.Plan(req)
	elapsed := time.Since(start)

	createdAt := s.now().UTC()
	runID := uuid.NewString()
	summary := dto.ExamScheduleSummary{
		RunID:          runID,
		CreatedAt:      createdAt,
		ExpiresAt:      createdAt.Add(s.cfg.ResultTTL),
		FirstDate:      req.First,
		LastDate:       req.Last,
		Exams:          req.Roster.Len(),
		Students:       len(req.Roster.StudentIDs()),
		AvailableDays:  len(plan.Normal.Available),
		NormalComplete: plan.Normal.Complete,
		Extended: dto.ExtendedSummary{
			LastDate:      plan.Extended.LastDate,
			ExtensionDays: plan.Extended.ExtensionDays,
			Complete:      plan.Extended.Complete,
			Unplaced:      plan.Extended.Unplaced,
		},
		Forced: dto.ForcedSummary{
			TotalConflicts:   plan.Forced.TotalConflicts,
			ImpactedStudents: plan.Forced.ImpactedStudents,
			Unplaced:         plan.Forced.Unplaced,
		},
		Skipped: plan.Normal.Skipped,
	}

	extendedWarning := extendedWarning(req.Last, plan)
	forcedWarning := ""
	if plan.Forced.TotalConflicts > 0 {
		forcedWarning = fmt.Sprintf("Forced schedule within the requested range has %d conflicts affecting %d students.",
			plan.Forced.TotalConflicts, plan.Forced.ImpactedStudents)
	}
	for _, w := range []string{extendedWarning, forcedWarning} {
		if w != "" {
			summary.Warnings = append(summary.Warnings, w)
		}
	}
	if len(plan.Normal.Available) == 0 {
		summary.Warnings = append(summary.Warnings, "The requested window has no available weekdays.")
	}
	if len(summary.Skipped) > 0 {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("%d fixed schedules could not be applied.", len(summary.Skipped)))
	}

	run := &dto.ExamScheduleRun{
		Summary: summary,
		Extended: dto.ExtendedScheduleView{
			RunID:         runID,
			Entries:       plan.Extended.Entries,
			LastDate:      plan.Extended.LastDate,
			ExtensionDays: plan.Extended.ExtensionDays,
			Complete:      plan.Extended.Complete,
			Unplaced:      plan.Extended.Unplaced,
			Warning:       extendedWarning,
			Calendar:      scheduling.CalendarMonths(req.Roster, plan.Extended.Assignment),
		},
		Forced: dto.ForcedScheduleView{
			RunID:            runID,
			Entries:          plan.Forced.Entries,
			TotalConflicts:   plan.Forced.TotalConflicts,
			ImpactedStudents: plan.Forced.ImpactedStudents,
			Conflicts:        plan.Conflicts,
			Skipped:          plan.Forced.Skipped,
			Unplaced:         plan.Forced.Unplaced,
			Warning:          forcedWarning,
			Calendar:         scheduling.CalendarMonths(req.Roster, plan.Forced.Assignment),
		},
	}

	s.observe(runID, plan, elapsed)
	return run
}

// Extended returns the default (conflict-free, possibly widened) view of a run.
func (s *ExamScheduleService) Extended(ctx context.Context, runID string) (*dto.ExtendedScheduleView, error) {
	run, err := s.Run(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &run.Extended, nil
}

// Forced returns the in-window conflict-minimising view of a run.
func (s *ExamScheduleService) Forced(ctx context.Context, runID string) (*dto.ForcedScheduleView, error) {
	run, err := s.Run(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &run.Forced, nil
}

// Run loads a stored run.
func (s *ExamScheduleService) Run(ctx context.Context, runID string) (*dto.ExamScheduleRun, error) {
	if _, err := uuid.Parse(runID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule run not found")
	}
	return s.store.Get(ctx, runID)
}

// BuildRequest validates raw inputs and converts them into an engine request.
// It is exported for the command line tool, which plans without storing.
func (s *ExamScheduleService) BuildRequest(ctx context.Context, req dto.GenerateExamScheduleRequest) (scheduling.Request, error) {
	if err := s.validator.Struct(req); err != nil {
		return scheduling.Request{}, validationError(err, "invalid exam schedule payload")
	}
	return s.buildRequest(ctx, req)
}

func (s *ExamScheduleService) buildRequest(ctx context.Context, req dto.GenerateExamScheduleRequest) (scheduling.Request, error) {
	first, err := scheduling.ParseDate(req.FirstDate)
	if err != nil {
		return scheduling.Request{}, appErrors.Clone(appErrors.ErrValidation, "firstDate must be YYYY-MM-DD")
	}
	last, err := scheduling.ParseDate(req.LastDate)
	if err != nil {
		return scheduling.Request{}, appErrors.Clone(appErrors.ErrValidation, "lastDate must be YYYY-MM-DD")
	}
	// An inverted window is allowed and simply has no available days.
	if first.DaysUntil(last) > maxWindowDays {
		return scheduling.Request{}, appErrors.Clone(appErrors.ErrInvalidWindow, fmt.Sprintf("exam window must not exceed %d days", maxWindowDays))
	}

	excluded := scheduling.NewDateSet()
	for _, raw := range req.ExcludedDates {
		d, err := scheduling.ParseDate(raw)
		if err != nil {
			return scheduling.Request{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("excluded date %q must be YYYY-MM-DD", raw))
		}
		excluded[d] = struct{}{}
	}

	fixed := make([]scheduling.FixedOverride, 0, len(req.FixedSchedules))
	for _, f := range req.FixedSchedules {
		d, err := scheduling.ParseDate(f.Date)
		if err != nil {
			return scheduling.Request{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("fixed date for %s must be YYYY-MM-DD", f.ExamID))
		}
		fixed = append(fixed, scheduling.FixedOverride{ExamID: strings.TrimSpace(f.ExamID), Date: d})
	}

	rows, err := s.loadRoster(ctx, req)
	if err != nil {
		return scheduling.Request{}, err
	}
	enrollments := make([]scheduling.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrollments = append(enrollments, row.ToEnrollment())
	}

	return scheduling.Request{
		Roster:   scheduling.NewRoster(enrollments),
		First:    first,
		Last:     last,
		Excluded: excluded,
		Fixed:    fixed,
	}, nil
}

func (s *ExamScheduleService) loadRoster(ctx context.Context, req dto.GenerateExamScheduleRequest) ([]models.ExamEnrollment, error) {
	rows := req.Roster
	if len(rows) == 0 {
		if req.TermID == "" {
			return nil, appErrors.Clone(appErrors.ErrInvalidRoster, "either roster or termId is required")
		}
		if s.rosters == nil {
			return nil, appErrors.Clone(appErrors.ErrInvalidRoster, "roster database is not configured; send the roster inline")
		}
		if s.cfg.MaxRosterRows > 0 && len(req.ExamIDs) == 0 {
			total, err := s.rosters.CountByTerm(ctx, req.TermID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count exam roster")
			}
			if total > s.cfg.MaxRosterRows {
				return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("roster exceeds %d rows", s.cfg.MaxRosterRows))
			}
		}
		start := time.Now()
		loaded, err := s.rosters.ListByTerm(ctx, models.RosterFilter{TermID: req.TermID, ExamIDs: req.ExamIDs})
		s.metrics.ObserveDBQuery("exam_roster_by_term", time.Since(start))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam roster")
		}
		if len(loaded) == 0 {
			return nil, appErrors.Clone(appErrors.ErrInvalidRoster, "no roster rows registered for term")
		}
		rows = loaded
	}
	if s.cfg.MaxRosterRows > 0 && len(rows) > s.cfg.MaxRosterRows {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("roster exceeds %d rows", s.cfg.MaxRosterRows))
	}
	return rows, nil
}

func (s *ExamScheduleService) observe(runID string, plan scheduling.Plan, elapsed time.Duration) {
	outcome := PlanOutcomeComplete
	switch {
	case !plan.Extended.Complete:
		outcome = PlanOutcomePartial
	case !plan.Normal.Complete:
		outcome = PlanOutcomeExtended
	}

	reasons := make([]string, 0, len(plan.Normal.Skipped))
	for _, skipped := range plan.Normal.Skipped {
		reasons = append(reasons, string(skipped.Reason))
		s.logger.Info("fixed schedule skipped",
			zap.String("run_id", runID),
			zap.String("exam_id", skipped.ExamID),
			zap.String("date", skipped.Date.String()),
			zap.String("reason", string(skipped.Reason)),
			zap.String("student_id", skipped.StudentID),
		)
	}
	if len(plan.Extended.Unplaced) > 0 {
		s.logger.Warn("exams left unscheduled after extension",
			zap.String("run_id", runID),
			zap.Strings("exam_ids", plan.Extended.Unplaced),
			zap.String("extended_last_date", plan.Extended.LastDate.String()),
		)
	}
	s.logger.Info("exam schedule planned",
		zap.String("run_id", runID),
		zap.String("outcome", outcome),
		zap.Int("available_days", len(plan.Normal.Available)),
		zap.Int("extension_days", plan.Extended.ExtensionDays),
		zap.Int("forced_conflicts", plan.Forced.TotalConflicts),
		zap.Duration("elapsed", elapsed),
	)

	s.metrics.ObservePlan(PlanObservation{
		Outcome:          outcome,
		Duration:         elapsed,
		ForcedConflicts:  plan.Forced.TotalConflicts,
		ExtendedUnplaced: len(plan.Extended.Unplaced),
		ForcedUnplaced:   len(plan.Forced.Unplaced),
		SkippedReasons:   reasons,
	})
}

// extendedWarning mirrors the notice schedulers get when the conflict-free
// plan only fits after widening the window.
func extendedWarning(last scheduling.Date, plan scheduling.Plan) string {
	if plan.Normal.Complete || !plan.Extended.LastDate.After(last) {
		if !plan.Extended.Complete {
			return fmt.Sprintf("%d exams could not be scheduled conflict-free.", len(plan.Extended.Unplaced))
		}
		return ""
	}
	msg := fmt.Sprintf("Not all exams could be scheduled conflict-free by %s. The schedule extends to %s.", last, plan.Extended.LastDate)
	if !plan.Extended.Complete {
		msg += fmt.Sprintf(" %d exams still could not be placed.", len(plan.Extended.Unplaced))
	}
	return msg
}

// validationError lists the failing fields next to the message.
func validationError(err error, message string) error {
	appErr := appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return appErr
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Namespace()] = fe.Tag()
	}
	return appErrors.WithDetails(appErr, details)
}
