package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the
// document API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>syncpad — Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Minimal OpenAPI document for the request/response surface. The realtime
// websocket channel at /ws is documented in the README, not here.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "syncpad", "version": "v0.1.0" },
  "paths": {
    "/api/documents": {
      "get": { "summary": "List documents, newest first", "responses": { "200": { "description": "document array" } } },
      "post": {
        "summary": "Create a document",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"title":{"type":"string"},"content":{"type":"string"}}}}}},
        "responses": { "201": { "description": "created document" } }
      }
    },
    "/api/documents/{id}": {
      "get": { "summary": "Fetch one document", "responses": { "200": { "description": "document" }, "404": { "description": "not found" } } },
      "put": {
        "summary": "Replace title and/or content",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"title":{"type":"string"},"content":{"type":"string"}}}}}},
        "responses": { "200": { "description": "updated document" }, "404": { "description": "not found" } }
      },
      "delete": { "summary": "Delete a document", "responses": { "200": { "description": "deleted" }, "404": { "description": "not found" } } }
    },
    "/api/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "ok" } } } }
  }
}`
