package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowedMethods = "GET, POST, PUT, PATCH, OPTIONS"
	allowedHeaders = "Authorization, Content-Type, X-Requested-With, X-Request-ID"
	// Content-Disposition carries the export filename to browser clients.
	exposedHeaders = "Content-Disposition, X-Request-ID"
)

// New returns a CORS middleware. An empty origin list allows any origin
// without credentials; an explicit list echoes matching origins with credentials.
func New(allowedOrigins []string) gin.HandlerFunc {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			origins[origin] = struct{}{}
		}
	}
	wildcard := len(origins) == 0

	return func(c *gin.Context) {
		header := c.Writer.Header()
		header.Add("Vary", "Origin")

		origin := strings.TrimRight(c.GetHeader("Origin"), "/")
		switch {
		case wildcard:
			header.Set("Access-Control-Allow-Origin", "*")
		case origin != "":
			if _, ok := origins[origin]; ok {
				header.Set("Access-Control-Allow-Origin", origin)
				header.Set("Access-Control-Allow-Credentials", "true")
			}
		}
		header.Set("Access-Control-Expose-Headers", exposedHeaders)

		if c.Request.Method == http.MethodOptions {
			header.Set("Access-Control-Allow-Headers", allowedHeaders)
			header.Set("Access-Control-Allow-Methods", allowedMethods)
			header.Set("Access-Control-Max-Age", "600")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
