// Package docs is regenerated by `swag init -g cmd/api/main.go`.
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
        "/healthz": {
            "get": {"produces": ["application/json"], "tags": ["System"], "summary": "Health check", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v2/payment/verify": {
            "post": {"consumes": ["application/json"], "produces": ["application/json"], "tags": ["Payment"], "summary": "Verify Payment", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v2/payment/webhook/gateway": {
            "post": {"consumes": ["application/json"], "produces": ["application/json"], "tags": ["Webhook"], "summary": "Gateway Webhook", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/onboarding/subscriptions": {
            "post": {"consumes": ["application/json"], "produces": ["application/json"], "tags": ["Subscription"], "summary": "Submit Onboarding", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/subscriptions/{id}/cancel": {
            "post": {"consumes": ["application/json"], "produces": ["application/json"], "tags": ["Subscription"], "summary": "Cancel Subscription", "parameters": [{"type": "string", "description": "Subscription ID", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/admin/payouts/run": {
            "post": {"consumes": ["application/json"], "produces": ["application/json"], "tags": ["Admin"], "summary": "Run Payouts (Admin)", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/admin/payouts": {
            "get": {"produces": ["application/json"], "tags": ["Admin"], "summary": "List Payouts (Admin)", "parameters": [{"type": "string", "description": "Month as YYYY-MM", "name": "month", "in": "query", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/admin/payments/list": {
            "post": {"consumes": ["application/json"], "produces": ["application/json"], "tags": ["Admin"], "summary": "List Payments (Admin)", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/admin/statistics": {
            "post": {"consumes": ["application/json"], "produces": ["application/json"], "tags": ["Admin"], "summary": "Get Statistics (Admin)", "responses": {"200": {"description": "OK"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8888",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Coachpay Backend API",
	Description:      "Coach payouts, coach assignment and payment verification.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
