package app

import (
	"context"
	"errors"

	"media-transcode-service/pkg/errno"
)

// Redeliverable 判断任务失败后是否应由队列重新投递。
// 参数错误与资产不存在重投也不会成功，其余错误（含租约冲突）都重投。
func Redeliverable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	code, _ := errno.Decode(err)
	switch code {
	case errno.ErrInvalidParam.Code, errno.ErrParameterInvalid.Code,
		errno.ErrMediaNotFound.Code, errno.ErrMediaIDRequired.Code,
		errno.ErrFilePathRequired.Code, errno.ErrQualityRequired.Code,
		errno.ErrUnknownQuality.Code, errno.ErrHLSBasePathMissing.Code:
		return false
	}
	return true
}
