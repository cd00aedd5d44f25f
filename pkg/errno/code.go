package errno

import (
	"errors"
	"fmt"
)

// code=0 请求成功
// code=4xx 客户端请求错误
// code=5xx 服务器端错误
// code=2xxxx 业务处理错误码

type Errno struct {
	Code    int
	Message string
}

// Error 实现error接口
func (e *Errno) Error() string {
	return e.Message
}

// BizError 业务错误，携带错误码与底层原因
type BizError struct {
	*Errno
	Cause error
}

// NewBizError 包装底层错误
func NewBizError(no *Errno, cause error) *BizError {
	return &BizError{Errno: no, Cause: cause}
}

func (e *BizError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *BizError) Unwrap() error { return e.Cause }

// Decode 从任意错误中提取错误码与消息
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}
	var biz *BizError
	if errors.As(err, &biz) {
		return biz.Code, biz.Message
	}
	var no *Errno
	if errors.As(err, &no) {
		return no.Code, no.Message
	}
	return ErrInternalServer.Code, err.Error()
}

var (
	OK = &Errno{Code: 200, Message: "Success"}

	ErrParameterInvalid = &Errno{Code: 400, Message: "Invalid parameter %s"}
	ErrInvalidParam     = &Errno{Code: 400, Message: "Invalid parameter"}
	ErrUnauthorized     = &Errno{Code: 401, Message: "Unauthorized"}
	ErrForbidden        = &Errno{Code: 403, Message: "Forbidden"}
	ErrNotFound         = &Errno{Code: 404, Message: "Not found"}
	ErrConflict         = &Errno{Code: 409, Message: "Conflict"}

	ErrInternalServer = &Errno{Code: 500, Message: "Internal server error"}
	ErrDatabase       = &Errno{Code: 501, Message: "Database error"}
	ErrUnknown        = &Errno{Code: 510, Message: "Unknown error"}

	// 业务错误码
	ErrMissingParam        = &Errno{Code: 20001, Message: "Missing required parameter"}
	ErrMediaNotFound       = &Errno{Code: 20008, Message: "Media asset not found"}
	ErrQueueFull           = &Errno{Code: 20012, Message: "Task queue is full"}
	ErrMediaIDRequired     = &Errno{Code: 20014, Message: "Media ID is required"}
	ErrFilePathRequired    = &Errno{Code: 20016, Message: "File path is required"}
	ErrQualityRequired     = &Errno{Code: 20017, Message: "Quality level is required"}
	ErrUnknownQuality      = &Errno{Code: 20021, Message: "Unknown quality level"}
	ErrHLSBasePathMissing  = &Errno{Code: 20022, Message: "HLS base path is required"}
	ErrHLSGenerationFailed = &Errno{Code: 20023, Message: "HLS slice generation failed"}
	ErrJobInProgress       = &Errno{Code: 20024, Message: "Transcode job already in progress"}
	ErrEventIgnored        = &Errno{Code: 20025, Message: "Object event ignored"}
	ErrTokenInvalid        = &Errno{Code: 20026, Message: "Download token is invalid"}
)
