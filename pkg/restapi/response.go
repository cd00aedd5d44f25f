package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"media-transcode-service/pkg/errno"
)

// Response 统一响应结构
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// Success 成功响应
func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, Response{
		Code:      errno.OK.Code,
		Message:   errno.OK.Message,
		Data:      data,
		RequestID: ctx.GetString("request_id"),
	})
}

// Failed 失败响应，HTTP 状态码由错误码推导
func Failed(ctx *gin.Context, err error) {
	code, msg := errno.Decode(err)
	ctx.JSON(HTTPStatus(code), Response{
		Code:      code,
		Message:   msg,
		RequestID: ctx.GetString("request_id"),
	})
}

// HTTPStatus 错误码到 HTTP 状态码的映射
func HTTPStatus(code int) int {
	switch code {
	case errno.ErrJobInProgress.Code:
		return http.StatusConflict
	case errno.ErrMediaNotFound.Code:
		return http.StatusNotFound
	case errno.ErrTokenInvalid.Code:
		return http.StatusUnauthorized
	case errno.ErrQueueFull.Code:
		return http.StatusServiceUnavailable
	case errno.ErrEventIgnored.Code:
		return http.StatusOK
	case errno.ErrHLSGenerationFailed.Code:
		return http.StatusInternalServerError
	}
	if code >= 400 && code < 600 {
		if code == errno.ErrDatabase.Code || code >= 500 {
			return http.StatusInternalServerError
		}
		return code
	}
	if code >= 20000 {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
