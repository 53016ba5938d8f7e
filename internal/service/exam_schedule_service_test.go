package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-exam-scheduler/internal/dto"
	"github.com/noah-isme/sma-exam-scheduler/internal/models"
	"github.com/noah-isme/sma-exam-scheduler/internal/scheduling"
	appErrors "github.com/noah-isme/sma-exam-scheduler/pkg/errors"
)

type rosterReaderStub struct {
	rows    []models.ExamEnrollment
	err     error
	filter  models.RosterFilter
	counted bool
}

func (s *rosterReaderStub) ListByTerm(_ context.Context, filter models.RosterFilter) ([]models.ExamEnrollment, error) {
	s.filter = filter
	return s.rows, s.err
}

func (s *rosterReaderStub) CountByTerm(_ context.Context, _ string) (int, error) {
	s.counted = true
	return len(s.rows), s.err
}

func sharedStudentRoster() []models.ExamEnrollment {
	return []models.ExamEnrollment{
		{ExamID: "EX1", StudentID: "S1", CourseName: "Biology"},
		{ExamID: "EX2", StudentID: "S1", CourseName: "Chemistry"},
		{ExamID: "EX3", StudentID: "S1", CourseName: "Physics"},
	}
}

func newExamScheduleServiceFixture(rosters rosterReader) (*ExamScheduleService, *MemoryResultStore) {
	store := NewMemoryResultStore()
	svc := NewExamScheduleService(rosters, nil, store, NewMetricsService(), nil, zap.NewNop(), ExamScheduleConfig{ResultTTL: time.Hour})
	return svc, store
}

func mustDate(t *testing.T, raw string) scheduling.Date {
	t.Helper()
	d, err := scheduling.ParseDate(raw)
	require.NoError(t, err)
	return d
}

func TestExamScheduleServiceGenerateExtendsWindow(t *testing.T) {
	svc, _ := newExamScheduleServiceFixture(nil)

	summary, err := svc.Generate(context.Background(), dto.GenerateExamScheduleRequest{
		FirstDate: "2025-05-12",
		LastDate:  "2025-05-13",
		Roster:    sharedStudentRoster(),
	})
	require.NoError(t, err)

	assert.False(t, summary.NormalComplete)
	assert.True(t, summary.Extended.Complete)
	assert.Equal(t, 7, summary.Extended.ExtensionDays)
	assert.Equal(t, mustDate(t, "2025-05-20"), summary.Extended.LastDate)
	assert.Equal(t, 1, summary.Forced.TotalConflicts)
	assert.Equal(t, 1, summary.Forced.ImpactedStudents)
	assert.Equal(t, 3, summary.Exams)
	assert.Equal(t, 1, summary.Students)
	require.NotEmpty(t, summary.Warnings)
	assert.Contains(t, summary.Warnings[0], "The schedule extends to 2025-05-20.")

	view, err := svc.Extended(context.Background(), summary.RunID)
	require.NoError(t, err)
	require.Len(t, view.Entries, 3)
	assert.Equal(t, "EX3", view.Entries[2].ExamID)
	assert.Equal(t, mustDate(t, "2025-05-14"), view.Entries[2].Date)
	assert.NotEmpty(t, view.Calendar)

	forced, err := svc.Forced(context.Background(), summary.RunID)
	require.NoError(t, err)
	require.Len(t, forced.Conflicts, 1)
	assert.Equal(t, []string{"EX1", "EX3"}, forced.Conflicts[0].ExamIDs)
}

func TestExamScheduleServiceGenerateLoadsTermRoster(t *testing.T) {
	stub := &rosterReaderStub{rows: sharedStudentRoster()[:1]}
	svc, _ := newExamScheduleServiceFixture(stub)

	summary, err := svc.Generate(context.Background(), dto.GenerateExamScheduleRequest{
		FirstDate: "2025-05-12",
		LastDate:  "2025-05-16",
		TermID:    "term-1",
		ExamIDs:   []string{"EX1"},
	})
	require.NoError(t, err)
	assert.True(t, summary.NormalComplete)
	assert.Empty(t, summary.Warnings)
	assert.Equal(t, models.RosterFilter{TermID: "term-1", ExamIDs: []string{"EX1"}}, stub.filter)
}

func TestExamScheduleServiceGenerateRosterErrors(t *testing.T) {
	cases := []struct {
		name    string
		rosters rosterReader
		req     dto.GenerateExamScheduleRequest
		code    string
	}{
		{
			name: "neither roster nor term",
			req:  dto.GenerateExamScheduleRequest{FirstDate: "2025-05-12", LastDate: "2025-05-16"},
			code: appErrors.ErrInvalidRoster.Code,
		},
		{
			name: "term without database",
			req:  dto.GenerateExamScheduleRequest{FirstDate: "2025-05-12", LastDate: "2025-05-16", TermID: "term-1"},
			code: appErrors.ErrInvalidRoster.Code,
		},
		{
			name:    "database failure",
			rosters: &rosterReaderStub{err: errors.New("db down")},
			req:     dto.GenerateExamScheduleRequest{FirstDate: "2025-05-12", LastDate: "2025-05-16", TermID: "term-1"},
			code:    appErrors.ErrInternal.Code,
		},
		{
			name:    "empty term",
			rosters: &rosterReaderStub{},
			req:     dto.GenerateExamScheduleRequest{FirstDate: "2025-05-12", LastDate: "2025-05-16", TermID: "term-1"},
			code:    appErrors.ErrInvalidRoster.Code,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newExamScheduleServiceFixture(tc.rosters)
			_, err := svc.Generate(context.Background(), tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
		})
	}
}

func TestExamScheduleServiceGenerateValidation(t *testing.T) {
	svc, _ := newExamScheduleServiceFixture(nil)

	_, err := svc.Generate(context.Background(), dto.GenerateExamScheduleRequest{
		FirstDate: "12/05/2025",
		LastDate:  "2025-05-16",
		Roster:    sharedStudentRoster(),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.NotNil(t, appErr.Details)

	_, err = svc.Generate(context.Background(), dto.GenerateExamScheduleRequest{
		FirstDate: "2025-05-12",
		LastDate:  "2025-05-16",
		Roster:    []models.ExamEnrollment{{ExamID: "EX1"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Generate(context.Background(), dto.GenerateExamScheduleRequest{
		FirstDate: "2025-01-01",
		LastDate:  "2026-06-01",
		Roster:    sharedStudentRoster(),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidWindow.Code, appErrors.FromError(err).Code)
}

func TestExamScheduleServiceInvertedWindowYieldsEmptyPlan(t *testing.T) {
	svc, _ := newExamScheduleServiceFixture(nil)

	summary, err := svc.Generate(context.Background(), dto.GenerateExamScheduleRequest{
		FirstDate: "2025-05-16",
		LastDate:  "2025-05-12",
		Roster:    sharedStudentRoster()[:1],
	})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.AvailableDays)
	assert.Equal(t, []string{"EX1"}, summary.Forced.Unplaced)
	assert.Contains(t, strings.Join(summary.Warnings, " "), "no available weekdays")
}

func TestExamScheduleServiceReportsSkippedOverrides(t *testing.T) {
	svc, _ := newExamScheduleServiceFixture(nil)

	summary, err := svc.Generate(context.Background(), dto.GenerateExamScheduleRequest{
		FirstDate: "2025-05-12",
		LastDate:  "2025-05-16",
		Roster:    sharedStudentRoster(),
		FixedSchedules: []dto.FixedScheduleRequest{
			{ExamID: "EX1", Date: "2025-05-12"},
			{ExamID: "EX2", Date: "2025-05-12"},
			{ExamID: "EX9", Date: "2025-05-13"},
		},
	})
	require.NoError(t, err)
	require.Len(t, summary.Skipped, 2)
	assert.Equal(t, scheduling.SkipStudentConflict, summary.Skipped[0].Reason)
	assert.Equal(t, "S1", summary.Skipped[0].StudentID)
	assert.Equal(t, scheduling.SkipUnknownExam, summary.Skipped[1].Reason)
}

func TestExamScheduleServiceRunLookup(t *testing.T) {
	svc, store := newExamScheduleServiceFixture(nil)

	_, err := svc.Extended(context.Background(), "not-a-uuid")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	summary, err := svc.Generate(context.Background(), dto.GenerateExamScheduleRequest{
		FirstDate: "2025-05-12",
		LastDate:  "2025-05-16",
		Roster:    sharedStudentRoster(),
	})
	require.NoError(t, err)

	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.Forced(context.Background(), summary.RunID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrResultExpired.Code, appErrors.FromError(err).Code)

	_, err = svc.Forced(context.Background(), summary.RunID)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExamScheduleServiceMaxRosterRows(t *testing.T) {
	svc := NewExamScheduleService(nil, nil, nil, nil, nil, nil, ExamScheduleConfig{MaxRosterRows: 2})

	_, err := svc.Generate(context.Background(), dto.GenerateExamScheduleRequest{
		FirstDate: "2025-05-12",
		LastDate:  "2025-05-16",
		Roster:    sharedStudentRoster(),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPayloadTooLarge.Code, appErrors.FromError(err).Code)

	stub := &rosterReaderStub{rows: sharedStudentRoster()}
	svc = NewExamScheduleService(stub, nil, nil, nil, nil, nil, ExamScheduleConfig{MaxRosterRows: 2})
	_, err = svc.Generate(context.Background(), dto.GenerateExamScheduleRequest{
		FirstDate: "2025-05-12",
		LastDate:  "2025-05-16",
		TermID:    "term-1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPayloadTooLarge.Code, appErrors.FromError(err).Code)
	assert.True(t, stub.counted)
	assert.Empty(t, stub.filter.TermID, "rows must not be loaded once the count is over the limit")
}

func TestMemoryResultStoreSweep(t *testing.T) {
	store := NewMemoryResultStore()
	now := time.Now()
	require.NoError(t, store.Save(context.Background(), &dto.ExamScheduleRun{Summary: dto.ExamScheduleSummary{RunID: "old", ExpiresAt: now.Add(-time.Minute)}}))
	require.NoError(t, store.Save(context.Background(), &dto.ExamScheduleRun{Summary: dto.ExamScheduleSummary{RunID: "new", ExpiresAt: now.Add(time.Hour)}}))

	assert.Equal(t, 1, store.Sweep())
	_, err := store.Get(context.Background(), "new")
	assert.NoError(t, err)
}

func TestCachedResultStoreDisabledCacheMisses(t *testing.T) {
	store := NewCachedResultStore(NewCacheService(nil, nil, time.Minute, nil, false))
	run := &dto.ExamScheduleRun{Summary: dto.ExamScheduleSummary{RunID: "run-1", ExpiresAt: time.Now().Add(time.Hour)}}

	require.NoError(t, store.Save(context.Background(), run))
	_, err := store.Get(context.Background(), "run-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
