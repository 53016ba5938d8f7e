package service

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/noah-isme/sma-exam-scheduler/internal/dto"
	"github.com/noah-isme/sma-exam-scheduler/internal/models"
	"github.com/noah-isme/sma-exam-scheduler/internal/scheduling"
	appErrors "github.com/noah-isme/sma-exam-scheduler/pkg/errors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseRosterCSV reads a roster with the headers "Exam ID", "Student ID" and
// "Course Name". Blank lines are ignored, values are trimmed and rows missing
// an exam or student ID are rejected with their line number. maxRows <= 0
// disables the row limit.
func ParseRosterCSV(r io.Reader, maxRows int) ([]models.ExamEnrollment, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var rows []models.ExamEnrollment
	if err := gocsv.UnmarshalCSV(reader, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, appErrors.Clone(appErrors.ErrInvalidRoster, "roster file is empty")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidRoster.Code, appErrors.ErrInvalidRoster.Status, "roster file is not valid CSV")
	}

	out := rows[:0]
	for i, row := range rows {
		row.ExamID = strings.TrimSpace(row.ExamID)
		row.StudentID = strings.TrimSpace(row.StudentID)
		row.CourseName = strings.TrimSpace(row.CourseName)
		if row.ExamID == "" && row.StudentID == "" && row.CourseName == "" {
			continue
		}
		if row.ExamID == "" || row.StudentID == "" {
			// Line 1 is the header.
			return nil, appErrors.Clone(appErrors.ErrInvalidRoster,
				fmt.Sprintf("line %d: Exam ID and Student ID are required", i+2))
		}
		out = append(out, row)
	}
	if len(out) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidRoster, "roster has no rows; expected headers Exam ID, Student ID, Course Name")
	}
	if maxRows > 0 && len(out) > maxRows {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("roster exceeds %d rows", maxRows))
	}
	return out, nil
}

// ParseFixedSchedules parses "EX1=2025-05-12, EX2=2025-05-14". Order is kept.
func ParseFixedSchedules(raw string) ([]dto.FixedScheduleRequest, error) {
	var out []dto.FixedScheduleRequest
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		exam, date, ok := strings.Cut(part, "=")
		exam, date = strings.TrimSpace(exam), strings.TrimSpace(date)
		if !ok || exam == "" || date == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("fixed schedule %q must look like EXAM_ID=YYYY-MM-DD", part))
		}
		if _, err := scheduling.ParseDate(date); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("fixed schedule %q has an invalid date", part))
		}
		out = append(out, dto.FixedScheduleRequest{ExamID: exam, Date: date})
	}
	return out, nil
}

// SplitDateList turns a comma list into trimmed entries, dropping blanks.
func SplitDateList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
