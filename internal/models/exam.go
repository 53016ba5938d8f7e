package models

import "github.com/noah-isme/sma-exam-scheduler/internal/scheduling"

// ExamEnrollment is one roster row: a student registered for an exam.
// The csv tags match the spreadsheet headers the registrar exports.
type ExamEnrollment struct {
	ExamID     string `db:"exam_id" json:"examId" csv:"Exam ID" validate:"required,max=64"`
	StudentID  string `db:"student_id" json:"studentId" csv:"Student ID" validate:"required,max=64"`
	CourseName string `db:"course_name" json:"courseName" csv:"Course Name" validate:"max=255"`
}

// ToEnrollment converts the row into the engine's input type.
func (e ExamEnrollment) ToEnrollment() scheduling.Enrollment {
	return scheduling.Enrollment{ExamID: e.ExamID, StudentID: e.StudentID, CourseName: e.CourseName}
}

// RosterFilter narrows roster rows loaded from the database.
type RosterFilter struct {
	TermID  string
	ExamIDs []string
}
