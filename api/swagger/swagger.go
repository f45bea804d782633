package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Tryout API",
        "description": "Timed coding-challenge attempt reservations and submissions",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Challenges", "description": "Challenge catalog and marker assignment"},
        {"name": "Attempts", "description": "Attempt reservation and submission lifecycle"}
    ],
    "paths": {
        "/api/v1/challenges": {
            "post": {
                "tags": ["Challenges"],
                "summary": "Register a challenge",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Repository already registered", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "get": {
                "tags": ["Challenges"],
                "summary": "List challenges",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/challenges/{id}": {
            "get": {
                "tags": ["Challenges"],
                "summary": "Get a challenge",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/challenges/{id}/markers": {
            "post": {
                "tags": ["Challenges"],
                "summary": "Assign a marker to a challenge",
                "responses": {
                    "204": {"description": "No content"}
                }
            },
            "get": {
                "tags": ["Challenges"],
                "summary": "List markers assigned to a challenge",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/challenges/{id}/attempts/export": {
            "get": {
                "tags": ["Attempts"],
                "summary": "Export a challenge's attempts as CSV or PDF",
                "responses": {
                    "200": {"description": "Report file"}
                }
            }
        },
        "/api/v1/attempts": {
            "post": {
                "tags": ["Attempts"],
                "summary": "Open an attempt with an exclusive time window",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Malformed window", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Attempt already in progress", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/reservations/{id}/cancel": {
            "post": {
                "tags": ["Attempts"],
                "summary": "Cancel an open reservation",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Reservation already closed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/submissions/{id}/submit": {
            "post": {
                "tags": ["Attempts"],
                "summary": "Submit work for an attempt",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already finalized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/submissions/{id}/status": {
            "get": {
                "tags": ["Attempts"],
                "summary": "Get effective attempt status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
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
                "details": {"type": "object"}
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
