package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Course Comments API",
        "description": "Feedback comments with read-after-write confirmation and full text search",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Comments", "description": "Feedback comments on course sessions"},
        {"name": "Exports", "description": "CSV and PDF downloads"},
        {"name": "Directory", "description": "Cached course directory"},
        {"name": "Observability", "description": "Health, readiness and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Observability"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["Observability"],
                "summary": "Readiness check",
                "description": "Runs every dependency check and answers 503 when one fails.",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A dependency is unavailable"}
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": ["Observability"],
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/api/v1/comments": {
            "post": {
                "tags": ["Comments"],
                "summary": "Create comment",
                "description": "Answers 202 with meta.consistency=pending and no id when the write was accepted but is not readable yet.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateCommentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Accepted, not yet readable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/comments/search": {
            "get": {
                "tags": ["Comments"],
                "summary": "Search comments",
                "parameters": [
                    {"name": "q", "in": "query", "required": true, "type": "string"},
                    {"name": "course_id", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "order", "in": "query", "type": "string", "enum": ["asc", "desc"]},
                    {"name": "hydrate", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/comments/{id}": {
            "get": {
                "tags": ["Comments"],
                "summary": "Get comment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Comments"],
                "summary": "Delete comment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/courses/{courseId}/comments": {
            "get": {
                "tags": ["Comments"],
                "summary": "List course comments",
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"},
                    {"name": "giver", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "order", "in": "query", "type": "string", "enum": ["asc", "desc"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/courses/{courseId}/comments/export": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export course comments",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/courses/{courseId}/directory-cache": {
            "delete": {
                "tags": ["Directory"],
                "summary": "Drop cached directory records of a course",
                "parameters": [
                    {"name": "courseId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateCommentRequest": {
            "type": "object",
            "required": ["course_id", "giver_email", "comment_text"],
            "properties": {
                "course_id": {"type": "string"},
                "giver_email": {"type": "string"},
                "recipient_type": {"type": "string", "enum": ["PERSON", "TEAM", "SECTION", "COURSE", "NONE"]},
                "recipients": {"type": "array", "items": {"type": "string"}},
                "status": {"type": "string", "enum": ["DRAFT", "FINAL"]},
                "sending_state": {"type": "string", "enum": ["SENT", "SENDING", "PENDING"]},
                "show_comment_to": {"type": "array", "items": {"type": "string"}},
                "show_giver_name_to": {"type": "array", "items": {"type": "string"}},
                "show_recipient_name_to": {"type": "array", "items": {"type": "string"}},
                "comment_text": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"}
            }
        },
        "Comment": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "course_id": {"type": "string"},
                "giver_email": {"type": "string"},
                "recipient_type": {"type": "string"},
                "recipients": {"type": "array", "items": {"type": "string"}},
                "status": {"type": "string"},
                "sending_state": {"type": "string"},
                "show_comment_to": {"type": "array", "items": {"type": "string"}},
                "show_giver_name_to": {"type": "array", "items": {"type": "string"}},
                "show_recipient_name_to": {"type": "array", "items": {"type": "string"}},
                "comment_text": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"}
            }
        },
        "SearchHit": {
            "type": "object",
            "properties": {
                "comment": {"$ref": "#/definitions/Comment"},
                "score": {"type": "number"}
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
                "status": {"type": "integer"},
                "details": {"type": "array", "items": {"type": "string"}}
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
