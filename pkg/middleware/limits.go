package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/civic-reports/pkg/common"
)

// RequireMultipart rejects requests that are not multipart/form-data.
func RequireMultipart() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
			common.ErrorResponse(c, http.StatusUnsupportedMediaType, "expected multipart/form-data")
			c.Abort()
			return
		}
		c.Next()
	}
}

// MaxBodySize caps the request body. A declared Content-Length over the
// limit is refused up front; otherwise reads past the limit fail.
func MaxBodySize(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			common.ErrorResponse(c, http.StatusRequestEntityTooLarge, "request body too large")
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		}
		c.Next()
	}
}
