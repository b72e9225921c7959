package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"solara.ai/insights-gateway/app/interfaces/http/responses"
	"solara.ai/insights-gateway/config/environment_variables"
)

// AdminKeyMiddleware requires "Authorization: Bearer <ADMIN_API_KEY>".
func AdminKeyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		want := environment_variables.Current().ADMIN_API_KEY
		if want == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, responses.ErrorResponse{
				Code:  responses.CodeAdminDisabled,
				Error: "admin api is disabled",
			})
			return
		}
		got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, responses.ErrorResponse{
				Code:  responses.CodeUnauthorized,
				Error: "invalid admin key",
			})
			return
		}
		c.Next()
	}
}
