// Package docs registers the Swagger 2.0 document of the reconciliation API
// with swag. It is maintained by hand next to the handler annotations.
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
        "/reconciliations": {
            "get": {
                "produces": ["application/json"],
                "tags": ["reconciliations"],
                "summary": "List reconciliation runs",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.Run"}}},
                    "500": {"description": "Internal server error", "schema": {"type": "object", "additionalProperties": true}}
                }
            },
            "post": {
                "description": "Store the job spec and start the run in the background",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["reconciliations"],
                "summary": "Create a reconciliation run",
                "parameters": [
                    {"description": "Reconciliation job spec", "name": "spec", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.ReconcileJobSpec"}}
                ],
                "responses": {
                    "202": {"description": "Run accepted", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Invalid request payload", "schema": {"type": "object", "additionalProperties": true}},
                    "500": {"description": "Internal server error", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/reconciliations/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["reconciliations"],
                "summary": "Get a reconciliation run",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Run"}},
                    "404": {"description": "Run not found", "schema": {"type": "object", "additionalProperties": true}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["reconciliations"],
                "summary": "Delete a run",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Run deleted", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Run not found", "schema": {"type": "object", "additionalProperties": true}},
                    "409": {"description": "Run still in progress", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/reconciliations/{id}/report": {
            "get": {
                "produces": ["application/json", "text/plain"],
                "tags": ["reconciliations"],
                "summary": "Get the report of a run",
                "parameters": [
                    {"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "json (default) or text", "name": "format", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Report not found", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/reconciliations/{id}/conflicts": {
            "get": {
                "produces": ["application/json"],
                "tags": ["reconciliations"],
                "summary": "Get multi-group orders of a run",
                "parameters": [
                    {"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true},
                    {"type": "boolean", "description": "only orders with a survey response", "name": "matched", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Conflicts", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Report not found", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/reconciliations/{id}/groups": {
            "get": {
                "produces": ["application/json"],
                "tags": ["reconciliations"],
                "summary": "Get exported per-group counts of a run",
                "parameters": [
                    {"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "dashboard (default) or corrected", "name": "view", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Group counts", "schema": {"type": "object", "additionalProperties": true}},
                    "400": {"description": "Unknown view", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Run not found", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/reconciliations/{id}/errors": {
            "get": {
                "produces": ["application/json"],
                "tags": ["reconciliations"],
                "summary": "Get run errors",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Run errors", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Run not found", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/reconciliations/{id}/progress": {
            "get": {
                "produces": ["application/json"],
                "tags": ["reconciliations"],
                "summary": "Get run progress",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Run progress", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Run not found", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/reconciliations/{id}/retry": {
            "post": {
                "produces": ["application/json"],
                "tags": ["reconciliations"],
                "summary": "Retry a run",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "202": {"description": "Retry started", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Run not found", "schema": {"type": "object", "additionalProperties": true}},
                    "409": {"description": "Run still in progress", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        }
    },
    "definitions": {
        "model.Source": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "url": {"type": "string"},
                "query": {"type": "string"},
                "sheets": {"type": "array", "items": {"type": "string"}},
                "optional": {"type": "boolean"}
            }
        },
        "model.FieldMap": {
            "type": "object",
            "properties": {
                "factOrder": {"type": "string"},
                "factGroup": {"type": "string"},
                "factMerchant": {"type": "string"},
                "factRegion": {"type": "string"},
                "surveyOrder": {"type": "string"},
                "surveyResponse": {"type": "string"}
            }
        },
        "model.ReconcileJobSpec": {
            "type": "object",
            "properties": {
                "fact": {"$ref": "#/definitions/model.Source"},
                "survey": {"$ref": "#/definitions/model.Source"},
                "fields": {"$ref": "#/definitions/model.FieldMap"},
                "predicateValues": {"type": "array", "items": {"type": "string"}},
                "transformations": {"type": "array", "items": {"type": "string"}},
                "jobTimeout": {"type": "string"}
            }
        },
        "model.Run": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "spec": {"$ref": "#/definitions/model.ReconcileJobSpec"},
                "status": {"type": "string"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Reconciliation API",
	Description:      "Submit order/survey count reconciliation runs and inspect their reports.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
