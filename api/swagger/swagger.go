package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "HXCI Campus Portal Gateway",
        "description": "Notification feed gateway for the campus portal",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Notifications", "description": "Notification feed, read state and categorized views"},
        {"name": "Cache", "description": "Per-session notification cache administration"},
        {"name": "Archive", "description": "Read-archive export"},
        {"name": "Auth", "description": "Development login"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/notifications": {
            "get": {
                "tags": ["Notifications"],
                "summary": "List notifications with filtering, sorting and pagination",
                "parameters": [
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"},
                    {"name": "level", "in": "query", "type": "integer", "minimum": 1, "maximum": 4},
                    {"name": "scope", "in": "query", "type": "string"},
                    {"name": "read_status", "in": "query", "type": "string", "enum": ["all", "read", "unread"]},
                    {"name": "keyword", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "type": "string", "format": "date"},
                    {"name": "sort", "in": "query", "type": "string", "enum": ["time_desc", "time_asc", "level_then_time", "publisher"]},
                    {"name": "refresh", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid query", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notifications/views": {
            "get": {
                "tags": ["Notifications"],
                "summary": "Categorized notification views and unread statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notifications/stats": {
            "get": {
                "tags": ["Notifications"],
                "summary": "Unread statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notifications/read-state": {
            "get": {
                "tags": ["Notifications"],
                "summary": "Current per-user read-state snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notifications/refresh": {
            "post": {
                "tags": ["Notifications"],
                "summary": "Force a refetch from the upstream notification source",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notifications/{id}": {
            "get": {
                "tags": ["Notifications"],
                "summary": "Notification detail",
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true},
                    {"name": "mark_read", "in": "query", "type": "boolean", "default": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notifications/{id}/read": {
            "post": {
                "tags": ["Notifications"],
                "summary": "Mark a notification as read",
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true}
                ],
                "responses": {
                    "204": {"description": "Marked"}
                }
            },
            "delete": {
                "tags": ["Notifications"],
                "summary": "Mark a notification as unread",
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true}
                ],
                "responses": {
                    "204": {"description": "Unmarked"}
                }
            }
        },
        "/notifications/{id}/hide": {
            "post": {
                "tags": ["Notifications"],
                "summary": "Hide a notification from every view",
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true}
                ],
                "responses": {
                    "204": {"description": "Hidden"}
                }
            }
        },
        "/notifications/bulk-read": {
            "post": {
                "tags": ["Notifications"],
                "summary": "Mark a batch of notifications as read",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkReadRequest"}}
                ],
                "responses": {
                    "204": {"description": "Marked"}
                }
            }
        },
        "/notifications/archive": {
            "delete": {
                "tags": ["Notifications"],
                "summary": "Clear the read archive",
                "responses": {
                    "204": {"description": "Cleared"}
                }
            }
        },
        "/cache/stats": {
            "get": {
                "tags": ["Cache"],
                "summary": "Cache size and key listing for the caller session",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/cache/config": {
            "patch": {
                "tags": ["Cache"],
                "summary": "Adjust cache TTL, capacity or enablement",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CacheConfigRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/cache": {
            "delete": {
                "tags": ["Cache"],
                "summary": "Invalidate cached entries, optionally by key prefix",
                "parameters": [
                    {"name": "prefix", "in": "query", "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Invalidated"}
                }
            }
        },
        "/archive/export": {
            "post": {
                "tags": ["Archive"],
                "summary": "Export the read archive as CSV or PDF",
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"], "default": "csv"}
                ],
                "responses": {
                    "200": {"description": "Signed download link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Missing credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/archive/export/{token}": {
            "get": {
                "tags": ["Archive"],
                "summary": "Download a previously exported archive file",
                "parameters": [
                    {"name": "token", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/dev-login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Mint a development access token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DevLoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "BulkReadRequest": {
            "type": "object",
            "required": ["ids"],
            "properties": {
                "ids": {"type": "array", "items": {"type": "integer"}}
            }
        },
        "CacheConfigRequest": {
            "type": "object",
            "properties": {
                "enabled": {"type": "boolean"},
                "ttl_ms": {"type": "integer"},
                "max_size": {"type": "integer"}
            }
        },
        "DevLoginRequest": {
            "type": "object",
            "required": ["user_id"],
            "properties": {
                "user_id": {"type": "string"},
                "username": {"type": "string"},
                "role": {"type": "string"}
            }
        },
        "Notice": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "severity": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "limit": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"}
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
                "notices": {"type": "array", "items": {"$ref": "#/definitions/Notice"}},
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
