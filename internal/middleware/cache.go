package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// PrivateCacheControl marks per-user responses, such as variant files, as
// cacheable only by the requesting browser.
func PrivateCacheControl(maxAgeSeconds int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", fmt.Sprintf("private, max-age=%d", maxAgeSeconds))
		c.Next()
	}
}

// NoStore disables caching, used for signed tokens and grading state.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
