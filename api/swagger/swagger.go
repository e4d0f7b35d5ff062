package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Timetable API",
        "description": "Genetic timetable generation for divisions, teachers and subjects",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Timetable", "description": "Slot previews and synchronous generation"},
        {"name": "Runs", "description": "Asynchronous generation runs"},
        {"name": "Inputs", "description": "Stored scheduling inputs"},
        {"name": "Ops", "description": "Readiness, metrics and cache"}
    ],
    "paths": {
        "/generate-slots": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Preview the slot grid of the stored schedule config",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/SlotsResponse"}},
                    "400": {"description": "Invalid config", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Timetable"],
                "summary": "Preview the slot grid of a schedule config",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ScheduleConfig"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/SlotsResponse"}},
                    "400": {"description": "Invalid config", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/generate-ai-timetable": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Generate a timetable from the stored inputs",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "query", "name": "seed", "type": "integer", "description": "Pin the random seed"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/TimetableResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Insufficient data", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Timetable"],
                "summary": "Generate a timetable from posted inputs",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/GenerateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/TimetableResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Insufficient data", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable-runs": {
            "post": {
                "tags": ["Runs"],
                "summary": "Queue a timetable generation",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/GenerateRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Queue full", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable-runs/{id}": {
            "get": {
                "tags": ["Runs"],
                "summary": "Get run status and result",
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Runs"],
                "summary": "Cancel a queued or running generation",
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable-runs/{id}/stream": {
            "get": {
                "tags": ["Runs"],
                "summary": "Stream run progress over a websocket",
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "101": {"description": "Switching protocols"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable-runs/{id}/export": {
            "get": {
                "tags": ["Runs"],
                "summary": "Download the timetable of a run",
                "produces": ["text/csv", "application/pdf", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "query", "name": "format", "type": "string", "enum": ["csv", "pdf", "xlsx"]}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "No timetable yet", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/divisions": {
            "get": {"tags": ["Inputs"], "summary": "List stored divisions", "responses": {"200": {"description": "OK"}}}
        },
        "/teachers": {
            "get": {"tags": ["Inputs"], "summary": "List stored teachers", "responses": {"200": {"description": "OK"}}}
        },
        "/subjects": {
            "get": {"tags": ["Inputs"], "summary": "List stored subjects", "responses": {"200": {"description": "OK"}}}
        },
        "/subject-teachers": {
            "get": {"tags": ["Inputs"], "summary": "List the subject to teacher mapping", "responses": {"200": {"description": "OK"}}}
        },
        "/timetable-config": {
            "get": {
                "tags": ["Inputs"],
                "summary": "Get the latest stored schedule config",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ScheduleConfig"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {"tags": ["Ops"], "summary": "Aggregated request, cache and generation metrics", "responses": {"200": {"description": "OK"}}}
        },
        "/cache": {
            "delete": {"tags": ["Ops"], "summary": "Drop every cached preview and timetable", "responses": {"204": {"description": "Flushed"}}}
        }
    },
    "definitions": {
        "ScheduleConfig": {
            "type": "object",
            "required": ["working_days", "start_time", "end_time", "break_count", "break_duration"],
            "properties": {
                "working_days": {"type": "integer", "minimum": 1, "maximum": 7},
                "start_time": {"type": "string", "example": "09:00"},
                "end_time": {"type": "string", "example": "17:00"},
                "break_count": {"type": "integer", "minimum": 0, "maximum": 5},
                "break_duration": {"type": "integer", "minimum": 15, "maximum": 120},
                "lecture_duration": {"type": "integer"},
                "lab_block_slots": {"type": "integer"}
            }
        },
        "SlotCell": {
            "type": "object",
            "properties": {
                "start": {"type": "string"},
                "end": {"type": "string"},
                "type": {"type": "string", "enum": ["lecture", "lab", "break", "free"]}
            }
        },
        "SlotsResponse": {
            "type": "object",
            "properties": {
                "working_days": {"type": "integer"},
                "days": {"type": "array", "items": {"type": "string"}},
                "timetable": {"type": "object", "additionalProperties": {"type": "array", "items": {"$ref": "#/definitions/SlotCell"}}}
            }
        },
        "GenerateRequest": {
            "type": "object",
            "properties": {
                "divisions": {"type": "array", "items": {"type": "object"}},
                "teachers": {"type": "array", "items": {"type": "object"}},
                "subjects": {"type": "array", "items": {"type": "object"}},
                "subject_teachers": {"type": "array", "items": {"type": "object"}},
                "config": {"$ref": "#/definitions/ScheduleConfig"},
                "options": {"type": "object"}
            }
        },
        "TimetableCell": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "start": {"type": "string"},
                "end": {"type": "string"},
                "subject": {"type": "string"},
                "teacher": {"type": "string"}
            }
        },
        "TimetableResponse": {
            "type": "object",
            "properties": {
                "timetable": {"type": "object"},
                "days": {"type": "array", "items": {"type": "string"}},
                "divisions": {"type": "array", "items": {"type": "string"}},
                "report": {"type": "object"}
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
