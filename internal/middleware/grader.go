package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/prairie-backend/internal/response"
)

// HeaderGraderSecret carries the shared secret of the external grader.
const HeaderGraderSecret = "X-Grader-Secret"

// RequireGraderSecret accepts only requests presenting the configured grader
// secret. An empty secret rejects everything.
func RequireGraderSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(HeaderGraderSecret)
		if got == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			response.AbortFail(c, http.StatusForbidden, response.ErrForbidden)
			return
		}
		c.Next()
	}
}
