package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mileage-api/pkg/middleware/requestid"
)

const (
	responseMetaKey = "response_meta"
	cacheHitKey     = "cache_hit"
	requestIDKey    = "request_id"
)

// WithResponseMeta seeds the per-request meta block that handlers merge into
// their envelopes. It carries the request id so clients can quote it.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		meta := map[string]interface{}{}
		if id := requestid.Value(c); id != "" {
			meta[requestIDKey] = id
		}
		c.Set(responseMetaKey, meta)
		c.Next()
	}
}

// SetCacheHit records whether the response body came from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, cacheHitKey, hit)
}

// SetMeta stores an arbitrary key on the response meta block.
func SetMeta(c *gin.Context, key string, value interface{}) {
	if c == nil {
		return
	}
	meta := ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
		c.Set(responseMetaKey, meta)
	}
	meta[key] = value
}

// ExtractMeta returns the metadata map stored on the context, or nil.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	value, exists := c.Get(responseMetaKey)
	if !exists {
		return nil
	}
	meta, _ := value.(map[string]interface{})
	return meta
}
