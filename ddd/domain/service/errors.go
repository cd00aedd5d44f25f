package service

import (
	"context"
	"errors"
)

var (
	// ErrAssetNotFound the finalized object could not be matched to a metadata record.
	ErrAssetNotFound = errors.New("media asset not found for object")
	// ErrTierTimeout the encoder exceeded the tier budget and was killed.
	ErrTierTimeout = errors.New("tier encode timed out")
	// ErrEncoderFailed the encoder exited with an error or produced no playlist.
	ErrEncoderFailed = errors.New("tier encode failed")
	// ErrJobInProgress another delivery of the same (asset, tier) job holds the lease.
	ErrJobInProgress = errors.New("transcode job already in progress")
	// ErrUploadExhausted artifact upload kept failing after all retries.
	ErrUploadExhausted = errors.New("artifact upload retries exhausted")
	// ErrMasterPublishFailed the first master playlist could not be uploaded; nothing was committed.
	ErrMasterPublishFailed = errors.New("master playlist publish failed")
)

const (
	reasonTimeout = "Video is too long or too large to process in time. Please try a shorter or smaller file."
	reasonGeneric = "Video processing failed. Please try again with a different file."
	reasonStuck   = "Video processing was interrupted. Please upload the file again."
)

// UserFacingReason 把内部错误转换为面向用户的简短说明
func UserFacingReason(err error) string {
	if errors.Is(err, ErrTierTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return reasonTimeout
	}
	return reasonGeneric
}

// truncateError ensures error messages won't overflow downstream columns.
func truncateError(msg string, max int) string {
	if max <= 0 {
		return msg
	}
	runes := []rune(msg)
	if len(runes) <= max {
		return msg
	}
	return string(runes[:max])
}
