// Package docs holds the OpenAPI document served under /swagger when built
// with -tags=swagger. Regenerate with `swag init -g cmd/forecastd/docs.go`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {"name": "forecastd maintainers"},
        "license": {"name": "MIT", "url": "https://opensource.org/licenses/MIT"},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/model/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["model"],
                "summary": "Model status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}}
            }
        },
        "/model/variants": {
            "get": {
                "produces": ["application/json"],
                "tags": ["model"],
                "summary": "List model variants",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.VariantsResponse"}}}
            }
        },
        "/model/events": {
            "get": {
                "produces": ["application/json"],
                "tags": ["model"],
                "summary": "Recent lifecycle events, newest first",
                "parameters": [{"type": "integer", "description": "maximum events returned", "name": "limit", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.EventsResponse"}}}
            }
        },
        "/model/switch": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["model"],
                "summary": "Switch the resident variant",
                "parameters": [{"description": "target variant", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.SwitchRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.SwitchResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/model/reload": {
            "post": {
                "produces": ["application/json"],
                "tags": ["model"],
                "summary": "Reload the current variant",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.SwitchResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/model/unload": {
            "post": {
                "produces": ["application/json"],
                "tags": ["model"],
                "summary": "Unload the resident model",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.AckResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/predict": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["predict"],
                "summary": "Forecast one instrument",
                "parameters": [{"description": "forecast request", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.PredictRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Forecast"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "504": {"description": "Gateway Timeout", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/predict/batch": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["predict"],
                "summary": "Forecast several instruments",
                "parameters": [{"description": "codes", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.BatchPredictRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.BatchPredictResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/cache": {
            "delete": {
                "produces": ["application/json"],
                "tags": ["predict"],
                "summary": "Drop every cached forecast",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.AckResponse"}}}
            }
        },
        "/forecasts/{code}/history": {
            "get": {
                "produces": ["application/json"],
                "tags": ["predict"],
                "summary": "Recently served forecasts for an instrument",
                "parameters": [
                    {"type": "string", "description": "instrument code", "name": "code", "in": "path", "required": true},
                    {"type": "integer", "description": "maximum records (default 20)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.HistoryResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/quotes/{code}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["quotes"],
                "summary": "Latest session of an instrument",
                "parameters": [
                    {"type": "string", "description": "instrument code", "name": "code", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.QuoteSummary"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/quotes/{code}/history": {
            "get": {
                "produces": ["application/json"],
                "tags": ["quotes"],
                "summary": "Recent daily bars of an instrument",
                "parameters": [
                    {"type": "string", "description": "instrument code", "name": "code", "in": "path", "required": true},
                    {"type": "integer", "description": "number of bars, 1-365 (default 30)", "name": "days", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.QuoteHistoryResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/quotes/{code}/actual": {
            "get": {
                "description": "Bars dated from start_date to end_date inclusive, for comparing against a forecast.",
                "produces": ["application/json"],
                "tags": ["quotes"],
                "summary": "Realized bars in a date range",
                "parameters": [
                    {"type": "string", "description": "instrument code", "name": "code", "in": "path", "required": true},
                    {"type": "string", "description": "first date (YYYY-MM-DD)", "name": "start_date", "in": "query", "required": true},
                    {"type": "string", "description": "last date (YYYY-MM-DD)", "name": "end_date", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ActualQuotesResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.Bar": {
            "type": "object",
            "properties": {
                "date": {"type": "string", "example": "2024-01-02"},
                "open": {"type": "number", "example": 10.12},
                "high": {"type": "number", "example": 10.40},
                "low": {"type": "number", "example": 10.01},
                "close": {"type": "number", "example": 10.33},
                "volume": {"type": "number", "example": 1250000}
            }
        },
        "types.QuoteSummary": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "600000"},
                "date": {"type": "string", "example": "2024-01-05"},
                "open": {"type": "number", "example": 10.12},
                "high": {"type": "number", "example": 10.40},
                "low": {"type": "number", "example": 10.01},
                "close": {"type": "number", "example": 10.33},
                "volume": {"type": "number", "example": 1250000},
                "prev_close": {"type": "number", "example": 10.20},
                "change": {"type": "number", "example": 0.13},
                "change_pct": {"type": "number", "example": 1.27}
            }
        },
        "types.QuoteHistoryResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "600000"},
                "history": {"type": "array", "items": {"$ref": "#/definitions/types.Bar"}}
            }
        },
        "types.ActualQuotesResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "600000"},
                "start_date": {"type": "string", "example": "2024-01-08"},
                "end_date": {"type": "string", "example": "2024-01-12"},
                "actual": {"type": "array", "items": {"$ref": "#/definitions/types.Bar"}}
            }
        },
        "types.AckResponse": {"type": "object", "properties": {"ok": {"type": "boolean", "example": true}}},
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "invalid JSON body"},
                "code": {"type": "integer", "example": 400},
                "kind": {"type": "string", "example": "invalid_request"},
                "retryable": {"type": "boolean", "example": false}
            }
        },
        "types.PredictRequest": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "600000"},
                "horizon": {"type": "integer", "example": 5},
                "start_date": {"type": "string", "example": "2024-01-02"},
                "history_days": {"type": "integer", "example": 60}
            }
        },
        "types.BatchPredictRequest": {
            "type": "object",
            "properties": {
                "codes": {"type": "array", "items": {"type": "string"}},
                "horizon": {"type": "integer", "example": 5}
            }
        },
        "types.ForecastPoint": {
            "type": "object",
            "properties": {
                "date": {"type": "string", "example": "2024-01-03"},
                "open": {"type": "number", "example": 10.35},
                "high": {"type": "number", "example": 10.52},
                "low": {"type": "number", "example": 10.21},
                "close": {"type": "number", "example": 10.44},
                "confidence": {"type": "number", "example": 0.9}
            }
        },
        "types.Forecast": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "600000"},
                "variant": {"type": "string", "example": "kronos-small"},
                "horizon": {"type": "integer", "example": 5},
                "start_date": {"type": "string", "example": "2024-01-02"},
                "generated_at_unix": {"type": "integer", "example": 1700000000},
                "predictions": {"type": "array", "items": {"$ref": "#/definitions/types.ForecastPoint"}}
            }
        },
        "types.BatchResult": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "success": {"type": "boolean"},
                "data": {"$ref": "#/definitions/types.Forecast"},
                "error": {"type": "string"},
                "kind": {"type": "string"}
            }
        },
        "types.BatchPredictResponse": {
            "type": "object",
            "properties": {"results": {"type": "array", "items": {"$ref": "#/definitions/types.BatchResult"}}}
        },
        "types.SwitchRequest": {"type": "object", "properties": {"variant": {"type": "string", "example": "kronos-base"}}},
        "types.SwitchResponse": {
            "type": "object",
            "properties": {
                "previous_variant": {"type": "string", "example": "kronos-small"},
                "variant": {"type": "string", "example": "kronos-base"},
                "download_occurred": {"type": "boolean", "example": false}
            }
        },
        "types.AdmissionStatus": {
            "type": "object",
            "properties": {
                "capacity": {"type": "integer", "example": 10},
                "in_use": {"type": "integer", "example": 2},
                "waiting": {"type": "integer", "example": 0},
                "peak": {"type": "integer", "example": 7},
                "timeouts_total": {"type": "integer", "example": 0}
            }
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "state": {"type": "string", "example": "ready"},
                "variant_id": {"type": "string", "example": "kronos-small"},
                "from_variant": {"type": "string"},
                "reason": {"type": "string"},
                "download_occurred": {"type": "boolean"},
                "tokenizer_downloaded": {"type": "boolean"},
                "model_downloaded": {"type": "boolean"},
                "loaded_at_unix": {"type": "integer"},
                "borrows": {"type": "integer", "example": 1},
                "loads_total": {"type": "integer", "example": 3},
                "last_error": {"type": "string"},
                "admission": {"$ref": "#/definitions/types.AdmissionStatus"},
                "cache_entries": {"type": "integer", "example": 12},
                "uptime_seconds": {"type": "integer", "example": 3600},
                "server_time_unix": {"type": "integer", "example": 1700000000}
            }
        },
        "types.VariantStatus": {
            "type": "object",
            "properties": {
                "id": {"type": "string", "example": "kronos-small"},
                "name": {"type": "string", "example": "Kronos-small"},
                "params": {"type": "string", "example": "24.7M"},
                "context_length": {"type": "integer", "example": 512},
                "model_locator": {"type": "string", "example": "NeoQuasar/Kronos-small"},
                "tokenizer_locator": {"type": "string", "example": "NeoQuasar/Kronos-Tokenizer-base"},
                "estimated_accuracy": {"type": "number", "example": 0.85},
                "description": {"type": "string"},
                "locally_available": {"type": "boolean"},
                "current": {"type": "boolean"}
            }
        },
        "types.VariantsResponse": {
            "type": "object",
            "properties": {"variants": {"type": "array", "items": {"$ref": "#/definitions/types.VariantStatus"}}}
        },
        "types.Event": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "variant_id": {"type": "string"},
                "at_unix": {"type": "integer"},
                "fields": {"type": "object"}
            }
        },
        "types.EventsResponse": {
            "type": "object",
            "properties": {"events": {"type": "array", "items": {"$ref": "#/definitions/types.Event"}}}
        },
        "types.HistoryRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "code": {"type": "string"},
                "variant": {"type": "string"},
                "horizon": {"type": "integer"},
                "start_date": {"type": "string"},
                "created_at_unix": {"type": "integer"},
                "forecast": {"$ref": "#/definitions/types.Forecast"}
            }
        },
        "types.HistoryResponse": {
            "type": "object",
            "properties": {"records": {"type": "array", "items": {"$ref": "#/definitions/types.HistoryRecord"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "forecastd API",
	Description:      "HTTP API for Kronos price forecasts and model lifecycle management.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
