// Package docs registers the OpenAPI document served at /swagger. It follows
// the layout `swag init -g cmd/scanpipe/main.go` produces from the handler
// annotations; regenerate it after changing them.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/analyze": {
            "post": {
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["Analysis"],
                "summary": "Submit a scan for analysis",
                "operationId": "analyzeScan",
                "parameters": [
                    {"type": "file", "description": "Scan image", "name": "file", "in": "formData", "required": true},
                    {"type": "string", "description": "Patient metadata as JSON", "name": "patientInfo", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.AnalyzeResponse"}},
                    "400": {"description": "No file, or invalid patientInfo", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "413": {"description": "Upload too large", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "502": {"description": "Analysis engine error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Analysis engine unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/analyze/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Analysis"],
                "summary": "Get an analysis job",
                "operationId": "getJob",
                "parameters": [{"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.AnalysisJob"}},
                    "404": {"description": "Unknown job", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/events": {
            "get": {
                "produces": ["text/event-stream"],
                "tags": ["Events"],
                "summary": "Subscribe to job and toast events",
                "operationId": "events",
                "parameters": [
                    {"type": "string", "description": "Session id; generated when absent", "name": "X-Session-ID", "in": "header"},
                    {"type": "string", "description": "Session id (for EventSource clients)", "name": "session", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/sessions/{sid}/toasts": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Toasts"],
                "summary": "List visible toasts of a session",
                "operationId": "listToasts",
                "parameters": [{"type": "string", "name": "sid", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListToastsResponse"}}}
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Toasts"],
                "summary": "Show a toast to a session",
                "operationId": "createToast",
                "parameters": [
                    {"type": "string", "name": "sid", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateToastRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.CreateToastResponse"}},
                    "400": {"description": "Invalid message or severity", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Session has no open stream", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/sessions/{sid}/toasts/{toastId}": {
            "delete": {
                "tags": ["Toasts"],
                "summary": "Dismiss a toast",
                "operationId": "dismissToast",
                "parameters": [
                    {"type": "string", "name": "sid", "in": "path", "required": true},
                    {"type": "string", "name": "toastId", "in": "path", "required": true}
                ],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/scans": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Scans"],
                "summary": "List scans",
                "operationId": "listScans",
                "parameters": [
                    {"type": "string", "name": "status", "in": "query"},
                    {"type": "string", "name": "severity", "in": "query"},
                    {"maximum": 500, "type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/domain.Scan"}}},
                    "304": {"description": "Not modified"}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Scans"],
                "summary": "Record a scan",
                "operationId": "createScan",
                "parameters": [
                    {"type": "string", "description": "Key for safe retries", "name": "Idempotency-Key", "in": "header"},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateScanRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.ScanResponse"}},
                    "409": {"description": "Id already used", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/scans/{id}": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Scans"],
                "summary": "Update a scan",
                "operationId": "updateScan",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.UpdateScanRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ScanResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/appointments": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Appointments"],
                "summary": "List appointments",
                "operationId": "listAppointments",
                "parameters": [
                    {"enum": ["pending", "confirmed", "rescheduled", "completed"], "type": "string", "name": "status", "in": "query"},
                    {"type": "string", "name": "doctorId", "in": "query"},
                    {"maximum": 500, "type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListAppointmentsResponse"}}}
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Appointments"],
                "summary": "Request an appointment",
                "operationId": "createAppointment",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateAppointmentRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.AppointmentResponse"}}}
            }
        },
        "/appointments/{id}": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Appointments"],
                "summary": "Update an appointment",
                "operationId": "updateAppointment",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.UpdateAppointmentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.AppointmentResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/messages": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Messages"],
                "summary": "List messages",
                "operationId": "listMessages",
                "parameters": [
                    {"type": "string", "name": "patientId", "in": "query"},
                    {"maximum": 500, "type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListMessagesResponse"}}}
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Messages"],
                "summary": "Send a message",
                "operationId": "postMessage",
                "parameters": [
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.PostMessageRequest"}}
                ],
                "responses": {
                    "201": {"description": "Stored message", "schema": {"$ref": "#/definitions/handlers.MessageResponse"}},
                    "400": {"description": "Missing required fields", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/messages/{id}": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Messages"],
                "summary": "Update a message",
                "operationId": "updateMessage",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "schema": {"$ref": "#/definitions/handlers.UpdateMessageRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.MessageResponse"}},
                    "404": {"description": "Message not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.AnalysisJob": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "processing", "completed", "failed"]},
                "progress": {"type": "integer"},
                "message": {"type": "string"},
                "patientInfo": {"type": "object"},
                "result": {"type": "object"},
                "error": {"type": "string"},
                "submittedAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "domain.Scan": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "seq": {"type": "integer"},
                "jobId": {"type": "string"},
                "name": {"type": "string"},
                "scanType": {"type": "string"},
                "status": {"type": "string"},
                "severity": {"type": "string"},
                "confidence": {"type": "integer"},
                "findings": {"type": "string"},
                "analysisResult": {"type": "object"},
                "timestamp": {"type": "string"}
            }
        },
        "domain.Appointment": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "patientName": {"type": "string"},
                "doctorId": {"type": "string"},
                "date": {"type": "string"},
                "time": {"type": "string"},
                "reason": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "confirmed", "rescheduled", "completed"]},
                "timestamp": {"type": "string"}
            }
        },
        "domain.Message": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "senderId": {"type": "string"},
                "senderRole": {"type": "string"},
                "recipientId": {"type": "string"},
                "recipientRole": {"type": "string"},
                "patientId": {"type": "string"},
                "content": {"type": "string"},
                "read": {"type": "boolean"},
                "timestamp": {"type": "string"}
            }
        },
        "domain.Toast": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "message": {"type": "string"},
                "severity": {"type": "string", "enum": ["success", "error", "warning", "info"]},
                "durationMs": {"type": "integer"},
                "createdAt": {"type": "string"}
            }
        },
        "handlers.AnalyzeResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": true},
                "jobId": {"type": "string"},
                "patientInfo": {"type": "object"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "code": {"type": "string", "example": "not_found"},
                "message": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "handlers.CreateToastRequest": {
            "type": "object",
            "required": ["message", "severity"],
            "properties": {
                "message": {"type": "string"},
                "severity": {"type": "string"},
                "durationMs": {"type": "integer"}
            }
        },
        "handlers.CreateToastResponse": {"type": "object", "properties": {"id": {"type": "string"}}},
        "handlers.ListToastsResponse": {
            "type": "object",
            "properties": {"toasts": {"type": "array", "items": {"$ref": "#/definitions/domain.Toast"}}}
        },
        "handlers.CreateScanRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "age": {"type": "string"},
                "contact": {"type": "string"},
                "email": {"type": "string"},
                "address": {"type": "string"},
                "scanType": {"type": "string"},
                "status": {"type": "string"},
                "severity": {"type": "string"},
                "confidence": {"type": "integer"},
                "findings": {"type": "string"},
                "analysisResult": {"type": "object"}
            }
        },
        "handlers.UpdateScanRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "severity": {"type": "string"},
                "findings": {"type": "string"},
                "scanType": {"type": "string"},
                "confidence": {"type": "integer"}
            }
        },
        "handlers.ScanResponse": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}, "scan": {"$ref": "#/definitions/domain.Scan"}}
        },
        "handlers.CreateAppointmentRequest": {
            "type": "object",
            "properties": {
                "patientName": {"type": "string"},
                "doctorId": {"type": "string"},
                "date": {"type": "string"},
                "time": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "handlers.UpdateAppointmentRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "confirmed", "rescheduled", "completed"]},
                "newDate": {"type": "string"},
                "newTime": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "handlers.AppointmentResponse": {
            "type": "object",
            "properties": {"message": {"type": "string"}, "appointment": {"$ref": "#/definitions/domain.Appointment"}}
        },
        "handlers.ListAppointmentsResponse": {
            "type": "object",
            "properties": {"appointments": {"type": "array", "items": {"$ref": "#/definitions/domain.Appointment"}}}
        },
        "handlers.PostMessageRequest": {
            "type": "object",
            "properties": {
                "senderId": {"type": "string"},
                "senderRole": {"type": "string"},
                "recipientId": {"type": "string"},
                "recipientRole": {"type": "string"},
                "patientId": {"type": "string"},
                "content": {"type": "string"}
            }
        },
        "handlers.UpdateMessageRequest": {
            "type": "object",
            "properties": {"read": {"type": "boolean"}, "content": {"type": "string"}}
        },
        "handlers.MessageResponse": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}, "message": {"$ref": "#/definitions/domain.Message"}}
        },
        "handlers.ListMessagesResponse": {
            "type": "object",
            "properties": {"messages": {"type": "array", "items": {"$ref": "#/definitions/domain.Message"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Scan Pipeline API",
	Description:      "Scan upload, analysis progress events, toasts and clinical records.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
