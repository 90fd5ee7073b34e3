package middleware

import (
	"fmt"
	"net/http"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/richxcame/civic-reports/pkg/common"
	"github.com/richxcame/civic-reports/pkg/logger"
	"go.uber.org/zap"
)

// Recovery middleware recovers from panics. When a Sentry hub is attached to
// the request the panic is reported there as well.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.WithContext(c.Request.Context()).Error("Panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
				)

				if hub := sentrygin.GetHubFromContext(c); hub != nil {
					hub.Scope().SetTag("correlation_id", GetCorrelationID(c))
					hub.RecoverWithContext(c.Request.Context(), fmt.Errorf("panic: %v", err))
				}

				common.ErrorResponse(c, http.StatusInternalServerError, "internal server error")
				c.Abort()
			}
		}()

		c.Next()
	}
}
