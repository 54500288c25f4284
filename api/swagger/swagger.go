package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Shift API",
        "description": "Recurring teaching shift templates and their materialized shifts.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "in": "header", "name": "Authorization"}
    },
    "tags": [
        {"name": "ShiftTemplates", "description": "Recurring shift templates, materialization and cleanup"},
        {"name": "Runs", "description": "Daily runner summaries and exported reports"}
    ],
    "paths": {
        "/shift-templates": {
            "get": {
                "tags": ["ShiftTemplates"],
                "summary": "List shift templates",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "teacherId", "in": "query", "type": "string"},
                    {"name": "activeOnly", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["ShiftTemplates"],
                "summary": "Create a recurring shift template",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateShiftTemplateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Admin privileges required", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/shift-templates/{id}": {
            "get": {
                "tags": ["ShiftTemplates"],
                "summary": "Get a shift template",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["ShiftTemplates"],
                "summary": "Update a shift template",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateShiftTemplateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/shift-templates/{id}/exclusions": {
            "post": {
                "tags": ["ShiftTemplates"],
                "summary": "Exclude one calendar day from a template",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExcludeDateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/shift-templates/{id}/generate": {
            "post": {
                "tags": ["ShiftTemplates"],
                "summary": "Materialize a template's rolling window now",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/shift-templates/cleanup": {
            "post": {
                "tags": ["ShiftTemplates"],
                "summary": "Delete future generated shifts",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/CleanupRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/shift-templates/runs/latest": {
            "get": {
                "tags": ["Runs"],
                "summary": "Latest daily runner summary",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No run recorded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/shift-templates/runs/reports/{token}": {
            "get": {
                "tags": ["Runs"],
                "summary": "Download a rendered run summary",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}},
                    "403": {"description": "Invalid or expired link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Recurrence": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["none", "daily", "weekly", "monthly", "yearly"]},
                "selectedWeekdays": {"type": "array", "items": {"type": "integer"}},
                "selectedMonthDays": {"type": "array", "items": {"type": "integer"}},
                "selectedMonths": {"type": "array", "items": {"type": "integer"}},
                "excludedWeekdays": {"type": "array", "items": {"type": "integer"}},
                "excludedDates": {"type": "array", "items": {"type": "string"}},
                "weekdayTimeSlots": {"type": "object", "additionalProperties": {"$ref": "#/definitions/WeekdayTimeSlot"}},
                "endDate": {"type": "string"}
            }
        },
        "WeekdayTimeSlot": {
            "type": "object",
            "properties": {
                "start_hour": {"type": "integer"},
                "start_minute": {"type": "integer"},
                "end_hour": {"type": "integer"},
                "end_minute": {"type": "integer"}
            }
        },
        "CreateShiftTemplateRequest": {
            "type": "object",
            "required": ["teacher_id", "start_time", "end_time", "duration_minutes", "base_shift_id", "base_shift_start", "base_shift_end"],
            "properties": {
                "teacher_id": {"type": "string"},
                "teacher_name": {"type": "string"},
                "student_ids": {"type": "array", "items": {"type": "string"}},
                "student_names": {"type": "array", "items": {"type": "string"}},
                "start_time": {"type": "string", "example": "15:00"},
                "end_time": {"type": "string", "example": "16:00"},
                "duration_minutes": {"type": "integer"},
                "admin_timezone": {"type": "string"},
                "teacher_timezone": {"type": "string"},
                "enhanced_recurrence": {"$ref": "#/definitions/Recurrence"},
                "recurrence_end_date": {"type": "string"},
                "max_days_ahead": {"type": "integer"},
                "base_shift_id": {"type": "string"},
                "base_shift_start": {"type": "string", "format": "date-time"},
                "base_shift_end": {"type": "string", "format": "date-time"},
                "created_by_admin_id": {"type": "string"},
                "category": {"type": "string"},
                "video_provider": {"type": "string"}
            }
        },
        "UpdateShiftTemplateRequest": {
            "type": "object",
            "properties": {
                "teacher_name": {"type": "string"},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "duration_minutes": {"type": "integer"},
                "admin_timezone": {"type": "string"},
                "teacher_timezone": {"type": "string"},
                "enhanced_recurrence": {"$ref": "#/definitions/Recurrence"},
                "max_days_ahead": {"type": "integer"},
                "is_active": {"type": "boolean"}
            }
        },
        "ExcludeDateRequest": {
            "type": "object",
            "required": ["date"],
            "properties": {
                "date": {"type": "string", "example": "2024-03-12"}
            }
        },
        "CleanupRequest": {
            "type": "object",
            "properties": {
                "templateId": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
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
