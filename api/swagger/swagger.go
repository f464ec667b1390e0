package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Mileage API",
        "description": "Daily odometer submissions, status tiers and supervisor review.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Authentication", "description": "Login and current user"},
        {"name": "Mileage", "description": "Daily mileage workflow, review and export"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "security": [],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Get current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/mileage": {
            "get": {
                "tags": ["Mileage"],
                "summary": "List mileage records visible to the caller",
                "parameters": [
                    {"name": "trainer", "in": "query", "type": "string", "format": "uuid", "description": "Trainer user id"},
                    {"name": "date", "in": "query", "type": "string", "format": "date"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Mileage"],
                "summary": "Save or submit today's mileage",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "action", "in": "formData", "type": "string", "enum": ["save", "submit"], "default": "submit"},
                    {"name": "start_km", "in": "formData", "type": "string"},
                    {"name": "end_km", "in": "formData", "type": "string"},
                    {"name": "start_photo", "in": "formData", "type": "file"},
                    {"name": "end_photo", "in": "formData", "type": "file"},
                    {"name": "images[]", "in": "formData", "type": "file"}
                ],
                "responses": {
                    "200": {"description": "Updated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already submitted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/mileage/today": {
            "get": {
                "tags": ["Mileage"],
                "summary": "Get today's record for the caller",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/mileage/summary": {
            "get": {
                "tags": ["Mileage"],
                "summary": "Count status tiers within the caller's scope",
                "parameters": [
                    {"name": "trainer", "in": "query", "type": "string", "format": "uuid", "description": "Trainer user id"},
                    {"name": "date_from", "in": "query", "type": "string", "format": "date"},
                    {"name": "date_to", "in": "query", "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/mileage/trainers": {
            "get": {
                "tags": ["Mileage"],
                "summary": "List trainer filter options",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/mileage/export": {
            "get": {
                "tags": ["Mileage"],
                "summary": "Export visible mileage records",
                "produces": ["text/csv", "application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf", "xlsx"]},
                    {"name": "trainer", "in": "query", "type": "string", "format": "uuid", "description": "Trainer user id"},
                    {"name": "date_from", "in": "query", "type": "string", "format": "date"},
                    {"name": "date_to", "in": "query", "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}}
                }
            }
        },
        "/mileage/{id}": {
            "get": {
                "tags": ["Mileage"],
                "summary": "Get a record with its photo links",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Mileage"],
                "summary": "Edit a submitted record",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "start_km", "in": "formData", "required": true, "type": "string"},
                    {"name": "end_km", "in": "formData", "required": true, "type": "string"},
                    {"name": "start_photo", "in": "formData", "type": "file"},
                    {"name": "end_photo", "in": "formData", "type": "file"},
                    {"name": "images[]", "in": "formData", "type": "file"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden or edit limit reached", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Not submitted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/mileage/{id}/status": {
            "patch": {
                "tags": ["Mileage"],
                "summary": "Override the status tier of a record",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/OverrideStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/files/{token}": {
            "get": {
                "tags": ["Mileage"],
                "summary": "Serve a stored photo by signed token",
                "security": [],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "OverrideStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string", "enum": ["OK", "WARNING", "ALERT"]}
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
