package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Exam Scheduler API",
        "description": "Plans exam periods so no student sits two exams on one day.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "ExamSchedules", "description": "Exam period planning, result views and exports"}
    ],
    "paths": {
        "/exam-schedules": {
            "post": {
                "tags": ["ExamSchedules"],
                "summary": "Plan an exam period",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateExamScheduleRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "413": {"description": "Roster too large", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exam-schedules/upload": {
            "post": {
                "tags": ["ExamSchedules"],
                "summary": "Plan an exam period from a roster CSV",
                "consumes": ["multipart/form-data"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "roster", "in": "formData", "type": "file", "required": true, "description": "CSV with Exam ID, Student ID, Course Name"},
                    {"name": "first_date", "in": "formData", "type": "string", "required": true},
                    {"name": "last_date", "in": "formData", "type": "string", "required": true},
                    {"name": "excluded_dates", "in": "formData", "type": "string", "description": "Comma separated dates"},
                    {"name": "fixed_schedules", "in": "formData", "type": "string", "description": "Comma separated EXAM_ID=YYYY-MM-DD pairs"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "413": {"description": "Upload too large", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exam-schedules/{id}": {
            "get": {
                "tags": ["ExamSchedules"],
                "summary": "Extended (conflict-free) plan of a run",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown run"},
                    "410": {"description": "Run expired"}
                }
            }
        },
        "/exam-schedules/{id}/forced": {
            "get": {
                "tags": ["ExamSchedules"],
                "summary": "Forced in-window plan of a run with its conflicts",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exam-schedules/{id}/export": {
            "get": {
                "tags": ["ExamSchedules"],
                "summary": "Download a run as CSV or PDF",
                "produces": ["text/csv", "application/pdf"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "solution", "in": "query", "type": "string", "enum": ["extended", "forced"]},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "table", "in": "query", "type": "string", "enum": ["schedule", "conflicts"]}
                ],
                "responses": {
                    "200": {"description": "File"}
                }
            }
        },
        "/exam-schedules/{id}/exports": {
            "post": {
                "tags": ["ExamSchedules"],
                "summary": "Queue an export of a run",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/ExportScheduleQuery"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exam-schedules/exports/{jobId}": {
            "get": {
                "tags": ["ExamSchedules"],
                "summary": "Export job status",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "jobId", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exam-schedules/downloads/{token}": {
            "get": {
                "tags": ["ExamSchedules"],
                "summary": "Download a finished export through its signed token",
                "parameters": [
                    {"name": "token", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "403": {"description": "Invalid or expired token"},
                    "412": {"description": "Export not finished"}
                }
            }
        }
    },
    "definitions": {
        "ExamEnrollment": {
            "type": "object",
            "required": ["examId", "studentId"],
            "properties": {
                "examId": {"type": "string"},
                "studentId": {"type": "string"},
                "courseName": {"type": "string"}
            }
        },
        "FixedScheduleRequest": {
            "type": "object",
            "required": ["examId", "date"],
            "properties": {
                "examId": {"type": "string"},
                "date": {"type": "string", "format": "date"}
            }
        },
        "GenerateExamScheduleRequest": {
            "type": "object",
            "required": ["firstDate", "lastDate"],
            "properties": {
                "firstDate": {"type": "string", "format": "date"},
                "lastDate": {"type": "string", "format": "date"},
                "excludedDates": {"type": "array", "items": {"type": "string", "format": "date"}},
                "fixedSchedules": {"type": "array", "items": {"$ref": "#/definitions/FixedScheduleRequest"}},
                "roster": {"type": "array", "items": {"$ref": "#/definitions/ExamEnrollment"}},
                "termId": {"type": "string"},
                "examIds": {"type": "array", "items": {"type": "string"}}
            }
        },
        "ExportScheduleQuery": {
            "type": "object",
            "properties": {
                "solution": {"type": "string", "enum": ["extended", "forced"]},
                "format": {"type": "string", "enum": ["csv", "pdf"]},
                "table": {"type": "string", "enum": ["schedule", "conflicts"]}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
