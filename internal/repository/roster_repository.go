package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-exam-scheduler/internal/models"
)

// RosterRepository loads exam rosters registered in the school database.
//
// Rows live in exam_enrollments(term_id, exam_id, student_id, course_name, row_no).
// row_no keeps the registrar's import order, which the planner relies on for
// tie-breaking.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository constructs the repository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// ListByTerm returns the roster rows of a term in import order, optionally
// restricted to a set of exams.
func (r *RosterRepository) ListByTerm(ctx context.Context, filter models.RosterFilter) ([]models.ExamEnrollment, error) {
	conditions := []string{"term_id = $1"}
	args := []interface{}{filter.TermID}
	if len(filter.ExamIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("exam_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.ExamIDs))
	}

	query := `SELECT exam_id, student_id, course_name FROM exam_enrollments WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY row_no ASC`

	var rows []models.ExamEnrollment
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list exam roster: %w", err)
	}
	return rows, nil
}

// CountByTerm returns the number of roster rows stored for a term.
func (r *RosterRepository) CountByTerm(ctx context.Context, termID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM exam_enrollments WHERE term_id = $1`, termID); err != nil {
		return 0, fmt.Errorf("count exam roster: %w", err)
	}
	return total, nil
}
