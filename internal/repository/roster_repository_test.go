package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-exam-scheduler/internal/models"
)

func newRosterRepoMock(t *testing.T) (*RosterRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewRosterRepository(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

func TestRosterRepositoryListByTerm(t *testing.T) {
	repo, mock, cleanup := newRosterRepoMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"exam_id", "student_id", "course_name"}).
		AddRow("EX1", "S1", "Biology").
		AddRow("EX1", "S2", "Biology").
		AddRow("EX2", "S1", "Chemistry")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT exam_id, student_id, course_name FROM exam_enrollments WHERE term_id = $1 ORDER BY row_no ASC")).
		WithArgs("term-1").
		WillReturnRows(rows)

	roster, err := repo.ListByTerm(context.Background(), models.RosterFilter{TermID: "term-1"})
	require.NoError(t, err)
	require.Len(t, roster, 3)
	assert.Equal(t, models.ExamEnrollment{ExamID: "EX2", StudentID: "S1", CourseName: "Chemistry"}, roster[2])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryListByTermFiltersExams(t *testing.T) {
	repo, mock, cleanup := newRosterRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE term_id = $1 AND exam_id = ANY($2) ORDER BY row_no ASC")).
		WithArgs("term-1", pq.Array([]string{"EX1", "EX3"})).
		WillReturnRows(sqlmock.NewRows([]string{"exam_id", "student_id", "course_name"}).AddRow("EX3", "S9", "Physics"))

	roster, err := repo.ListByTerm(context.Background(), models.RosterFilter{TermID: "term-1", ExamIDs: []string{"EX1", "EX3"}})
	require.NoError(t, err)
	require.Len(t, roster, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryListByTermWrapsErrors(t *testing.T) {
	repo, mock, cleanup := newRosterRepoMock(t)
	defer cleanup()

	mock.ExpectQuery("FROM exam_enrollments").WillReturnError(errors.New("connection reset"))

	_, err := repo.ListByTerm(context.Background(), models.RosterFilter{TermID: "term-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list exam roster")
}

func TestRosterRepositoryCountByTerm(t *testing.T) {
	repo, mock, cleanup := newRosterRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM exam_enrollments WHERE term_id = $1")).
		WithArgs("term-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	total, err := repo.CountByTerm(context.Background(), "term-1")
	require.NoError(t, err)
	assert.Equal(t, 42, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
