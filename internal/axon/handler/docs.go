package handler

import "github.com/swaggo/swag"

// docTemplate is the admin API document served at /swagger/doc.json. It
// mirrors the godoc annotations on the route handlers.
const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "license": {
            "name": "Apache 2.0",
            "url": "http://www.apache.org/licenses/LICENSE-2.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "description": "Connection state of the agent. 200 when connected, 202 while (re)connecting, 503 otherwise.",
                "produces": ["application/json"],
                "tags": ["agent"],
                "summary": "Agent health",
                "responses": {
                    "200": {"description": "Connected", "schema": {"$ref": "#/definitions/agent.Snapshot"}},
                    "202": {"description": "Connecting", "schema": {"$ref": "#/definitions/agent.Snapshot"}},
                    "503": {"description": "Disconnected, shutting down or closed", "schema": {"$ref": "#/definitions/agent.Snapshot"}}
                }
            }
        },
        "/status": {
            "get": {
                "description": "The most recently published discovery payload, byte for byte.",
                "produces": ["application/json"],
                "tags": ["agent"],
                "summary": "Last discovery payload",
                "responses": {
                    "200": {"description": "Last published payload", "schema": {"type": "object"}},
                    "404": {"description": "Nothing published yet", "schema": {"$ref": "#/definitions/wrapper.JSONResult"}}
                }
            }
        },
        "/metrics": {
            "get": {
                "description": "Prometheus exposition of the agent metrics.",
                "produces": ["text/plain"],
                "tags": ["observability"],
                "summary": "Prometheus metrics",
                "responses": {
                    "200": {"description": "Metrics in text exposition format", "schema": {"type": "string"}}
                }
            }
        },
        "/actions/{action_id}": {
            "post": {
                "security": [{"BasicAuth": []}],
                "description": "Queue a command as if it arrived on the command topic.",
                "produces": ["application/json"],
                "tags": ["actions"],
                "summary": "Trigger an action",
                "parameters": [
                    {"type": "string", "description": "Action id, e.g. drop_cache", "name": "action_id", "in": "path", "required": true}
                ],
                "responses": {
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/wrapper.JSONResult"}},
                    "401": {"description": "Missing or invalid credentials", "schema": {"$ref": "#/definitions/wrapper.JSONResult"}},
                    "409": {"description": "Profile accepts no commands", "schema": {"$ref": "#/definitions/wrapper.JSONResult"}},
                    "429": {"description": "Command queue full", "schema": {"$ref": "#/definitions/wrapper.JSONResult"}}
                }
            }
        }
    },
    "definitions": {
        "agent.Snapshot": {
            "type": "object",
            "properties": {
                "service_id": {"type": "string"},
                "state": {"type": "string"},
                "interval": {"type": "string"},
                "started_at": {"type": "string"},
                "uptime": {"type": "string"},
                "last_publish": {"type": "string"},
                "last_value": {"type": "number"},
                "phase": {"type": "string"},
                "subscribed": {"type": "boolean"}
            }
        },
        "wrapper.JSONResult": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {}
            }
        }
    },
    "securityDefinitions": {
        "BasicAuth": {"type": "basic"}
    }
}`

// SwaggerInfo holds the exported metadata for the admin API document.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Axon Agent - Admin API",
	Description:      "Local admin API of the axon sidecar: health, last payload, metrics and manual actions.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
