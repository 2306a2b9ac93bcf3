// Package docs registers the OpenAPI document served under /swagger.
// Regenerate the full document with `swag init -g cmd/server/main.go`.
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
        "/chat": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Chat"],
                "summary": "Answer the chat widget",
                "operationId": "chat",
                "parameters": [
                    {"description": "Conversation", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ChatRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ChatResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Provider unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/tickets": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Tickets"],
                "summary": "List tickets (paginated)",
                "operationId": "listTickets",
                "parameters": [
                    {"type": "string", "description": "Only tickets of this user (staff)", "name": "userId", "in": "query"},
                    {"type": "integer", "default": 1, "description": "Page number", "name": "page", "in": "query"},
                    {"type": "integer", "default": 20, "description": "Items per page", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "304": {"description": "Not Modified"}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Tickets"],
                "summary": "Open a ticket",
                "operationId": "createTicket",
                "parameters": [
                    {"type": "string", "description": "Idempotency key", "name": "Idempotency-Key", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/agents/online": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Is live support available?",
                "operationId": "agentsOnline",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    },
    "definitions": {
        "handlers.ChatRequest": {
            "type": "object",
            "properties": {
                "context": {"type": "string", "example": "/services"},
                "messages": {"type": "array", "items": {"$ref": "#/definitions/handlers.ChatTurn"}}
            }
        },
        "handlers.ChatTurn": {
            "type": "object",
            "required": ["role"],
            "properties": {
                "content": {"type": "string", "example": "Do you offer financing?"},
                "role": {"type": "string", "enum": ["user", "assistant", "system"], "example": "user"}
            }
        },
        "handlers.ChatResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "not_found"},
                "message": {"type": "string", "example": "ticket not found"},
                "request_id": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{"http", "https"},
	Title:            "Solar Support API",
	Description:      "Support backend for the solar company website.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
