package cqe

import (
	"path"
	"strings"

	"media-transcode-service/pkg/errno"
)

// ObjectFinalizedReq 对象写入完成事件（webhook 与 bucket 通知共用）
type ObjectFinalizedReq struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name" binding:"required"` // 对象完整路径
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".m4v": true, ".webm": true,
	".mkv": true, ".avi": true, ".3gp": true,
}

var generatedExtensions = map[string]bool{
	".m3u8": true, ".ts": true, ".m4s": true, ".jpg": true, ".jpeg": true, ".png": true, ".webp": true,
}

func (req *ObjectFinalizedReq) Validate() error {
	req.Name = strings.TrimLeft(req.Name, "/")
	if req.Name == "" {
		return errno.ErrFilePathRequired
	}
	return nil
}

// ObjectDir 对象所在目录
func (req *ObjectFinalizedReq) ObjectDir() string {
	return path.Dir(req.Name)
}

// ShouldProcess 只处理上传前缀下的源视频，跳过自身生成的产物
func (req *ObjectFinalizedReq) ShouldProcess(uploadPrefix string) (bool, string) {
	name := req.Name
	if prefix := strings.Trim(uploadPrefix, "/"); prefix != "" && !strings.HasPrefix(name, prefix+"/") {
		return false, "outside upload prefix"
	}
	lower := strings.ToLower(name)
	if strings.Contains(lower, "/hls/") || strings.Contains(lower, "/thumbnails/") {
		return false, "generated output"
	}
	ext := path.Ext(lower)
	if generatedExtensions[ext] {
		return false, "generated output"
	}
	if strings.HasPrefix(strings.ToLower(req.ContentType), "video/") {
		return true, ""
	}
	if videoExtensions[ext] {
		return true, ""
	}
	return false, "not a video"
}

// RegisterMediaReq 上传端登记资产记录
type RegisterMediaReq struct {
	MediaID       string `json:"mediaId"`
	SourcePath    string `json:"sourcePath" binding:"required"`
	StorageFolder string `json:"storageFolder"`
}

func (req *RegisterMediaReq) Validate() error {
	req.SourcePath = strings.TrimLeft(req.SourcePath, "/")
	req.StorageFolder = strings.Trim(req.StorageFolder, "/")
	if req.SourcePath == "" {
		return errno.ErrFilePathRequired
	}
	return nil
}
