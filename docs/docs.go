// Package docs registers the OpenAPI description served at /swagger.
// Regenerate with `swag init -g cmd/bistro/main.go`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/healthz": {"get": {"summary": "Liveness", "responses": {"200": {"description": "OK"}}}},
        "/tables": {"get": {"summary": "List tables with their availability", "responses": {"200": {"description": "OK"}}}},
        "/reservations": {
            "get": {"summary": "List reservations ordered by start time", "responses": {"200": {"description": "OK"}}},
            "post": {
                "summary": "Create reservation (idempotent)",
                "parameters": [{"in": "body", "name": "req", "required": true, "schema": {"$ref": "#/definitions/httpgin.CreateReservationRequest"}}],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}},
                    "404": {"description": "unknown customer", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}},
                    "409": {"description": "no table fits / idem in progress", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}},
                    "429": {"description": "rate limited", "schema": {"$ref": "#/definitions/httpgin.ErrorResponse"}}
                }
            }
        },
        "/reservations/{id}": {"delete": {"summary": "Cancel reservation", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/seatings/check-in": {"post": {"summary": "Check in a customer holding a reservation", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/seatings/walk-in": {"post": {"summary": "Seat a walk-in party", "responses": {"200": {"description": "OK"}, "404": {"description": "no free table"}}}},
        "/orders": {
            "get": {"summary": "List active orders", "responses": {"200": {"description": "OK"}}},
            "post": {"summary": "Seat a customer and place an order", "responses": {"201": {"description": "Created"}, "404": {"description": "unknown reference or no free table"}, "409": {"description": "order id taken"}}}
        },
        "/orders/{id}": {"get": {"summary": "Get active order", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/orders/{id}/items": {"post": {"summary": "Add item to an active order", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}}}},
        "/orders/{id}/items/{name}": {"delete": {"summary": "Remove item from an active order", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}, {"in": "path", "name": "name", "type": "string", "required": true}, {"in": "query", "name": "quantity", "type": "integer"}], "responses": {"200": {"description": "OK"}}}},
        "/orders/{id}/pay": {"post": {"summary": "Pay an order and free its table", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "order is empty"}}}},
        "/reports/revenue/day": {"get": {"summary": "Revenue of one day", "parameters": [{"in": "query", "name": "date", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}},
        "/reports/revenue/month": {"get": {"summary": "Revenue of one month", "parameters": [{"in": "query", "name": "month", "type": "string", "required": true}], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}},
        "/admin/customers": {"post": {"summary": "Register customer", "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}}}},
        "/admin/staff": {"post": {"summary": "Register staff member", "responses": {"201": {"description": "Created"}, "400": {"description": "unknown role"}}}},
        "/admin/menu-items": {"post": {"summary": "Add menu item or package", "responses": {"201": {"description": "Created"}, "409": {"description": "name taken"}}}}
    },
    "definitions": {
        "httpgin.CreateReservationRequest": {
            "type": "object",
            "required": ["customer_id", "party_size", "start"],
            "properties": {
                "customer_id": {"type": "integer"},
                "party_size": {"type": "integer"},
                "start": {"type": "string"},
                "duration_hours": {"type": "integer"}
            }
        },
        "httpgin.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Bistro API",
	Description:      "Restaurant floor, reservation and order ledger service.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
