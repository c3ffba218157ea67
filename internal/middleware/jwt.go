package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/prairie-backend/internal/response"
	"github.com/stemsi/prairie-backend/internal/service"
)

const (
	// ContextKeyIdentity is the Gin context key for the resolved identity.
	ContextKeyIdentity = "identity"

	// HeaderEffectiveUserID lets an instructor act as another user.
	HeaderEffectiveUserID = "X-Effective-User-ID"
)

// RequireAuth validates a user JWT and resolves the effective identity.
func RequireAuth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := authService.ValidateToken(tokenStr)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		effective, err := effectiveUserID(c)
		if err != nil {
			response.AbortFail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}

		identity, err := authService.ResolveIdentity(c.Request.Context(), claims, effective)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrCannotActAs):
				response.AbortFail(c, http.StatusForbidden, response.ErrCannotActAs)
			case errors.Is(err, service.ErrNotFound):
				response.AbortFail(c, http.StatusNotFound, response.ErrNotFound)
			default:
				response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			}
			return
		}

		c.Set(ContextKeyIdentity, identity)
		c.Next()
	}
}

// GetIdentity retrieves the resolved identity from the Gin context.
func GetIdentity(c *gin.Context) *service.Identity {
	val, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return nil
	}
	identity, ok := val.(*service.Identity)
	if !ok {
		return nil
	}
	return identity
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

func effectiveUserID(c *gin.Context) (*int64, error) {
	raw := c.GetHeader(HeaderEffectiveUserID)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid %s header %q", HeaderEffectiveUserID, raw)
	}
	return &id, nil
}
