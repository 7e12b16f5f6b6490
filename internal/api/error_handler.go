package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kirifer/ITS-certificate-generator/internal/service"
)

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorHandlerMiddleware 错误处理中间件
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()

			var apiErr *APIError
			if errors.As(err, &apiErr) {
				Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
			} else {
				Error(c, http.StatusInternalServerError, "internal server error", err.Error())
			}
		}
	}
}

// handleServiceError 将服务层错误映射为 HTTP 响应
func handleServiceError(c *gin.Context, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		Error(c, http.StatusBadRequest, "invalid request", ve.Error())
	case errors.Is(err, service.ErrNotFound):
		Error(c, http.StatusNotFound, "resource not found", "")
	case service.IsStorageError(err):
		// 详情只进日志,存储后端的错误可能泄露内部路径
		GetLogger().WithError(err).WithField("request_id", c.GetString("request_id")).Error("artifact storage failed")
		Error(c, http.StatusInternalServerError, "artifact storage failed", "")
	default:
		GetLogger().WithError(err).WithField("request_id", c.GetString("request_id")).Error("unhandled service error")
		Error(c, http.StatusInternalServerError, "internal server error", "")
	}
}
