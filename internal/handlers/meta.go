package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lakehouse-apps/chat-config-manager/internal/openapi"
)

// OpenAPISpec serves the API description, as JSON by default or YAML
// with ?format=yaml.
func (h *Handler) OpenAPISpec(c *gin.Context) {
	if c.Query("format") == "yaml" {
		c.Data(http.StatusOK, "application/yaml", openapi.YAML())
		return
	}
	payload, err := openapi.JSON()
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", payload)
}

const docsPage = `<!DOCTYPE html>
<html>
<head>
  <title>Chat Config Manager API</title>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
<script>
  window.onload = () => {
    SwaggerUIBundle({url: "/openapi", dom_id: "#swagger-ui"});
  };
</script>
</body>
</html>`

// APIDocs serves an interactive documentation page backed by /openapi.
func (h *Handler) APIDocs(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(docsPage))
}
