package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/dunning/internal/observability/context"
)

const (
	operatorActorID    = "api"
	contextBearerToken = "bearer_token"
)

// OperatorAuth requires "Authorization: Bearer <ADMIN_API_TOKEN>" when a token
// is configured. Without one the operator API is open.
func (s *Server) OperatorAuth() gin.HandlerFunc {
	expected := strings.TrimSpace(s.cfg.HTTP.APIToken)
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if expected != "" && subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := obscontext.WithActor(c.Request.Context(), "operator", operatorActorID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextBearerToken, token)
		c.Next()
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
