package service

import (
	"context"
	"fmt"
	"path"
	"strings"

	"media-transcode-service/ddd/domain/gateway"
	"media-transcode-service/ddd/domain/vo"
)

// MasterPlaylistName master 文件名
const MasterPlaylistName = "master.m3u8"

// MasterPlaylistKey master 的对象路径
func MasterPlaylistKey(hlsBasePath string) string {
	return path.Join(hlsBasePath, MasterPlaylistName)
}

// MasterPlaylistBuilder 合并档位列表并生成 master playlist
type MasterPlaylistBuilder struct {
	signer   gateway.URLSigner
	uploader *UploadRetrier
	bucket   string
}

// NewMasterPlaylistBuilder 创建构建器
func NewMasterPlaylistBuilder(signer gateway.URLSigner, uploader *UploadRetrier) *MasterPlaylistBuilder {
	return &MasterPlaylistBuilder{
		signer:   signer,
		uploader: uploader,
		bucket:   uploader.Storage().Bucket(),
	}
}

// Build 合并 incoming 后渲染 master；结果按带宽升序，同名档位只保留一条
func (b *MasterPlaylistBuilder) Build(existing []vo.TierResult, incoming vo.TierResult, token string) ([]vo.TierResult, string) {
	merged := vo.MergeTier(existing, incoming)
	return merged, b.Render(merged, token)
}

// Render 渲染 master playlist 内容
func (b *MasterPlaylistBuilder) Render(tiers []vo.TierResult, token string) string {
	sorted := append([]vo.TierResult(nil), tiers...)
	vo.SortByBandwidth(sorted)

	var sb strings.Builder
	sb.WriteString("#EXTM3U\n")
	sb.WriteString("#EXT-X-VERSION:3\n")
	sb.WriteString("#EXT-X-INDEPENDENT-SEGMENTS\n")
	for _, t := range sorted {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%s\n", t.Bandwidth, t.Resolution))
		sb.WriteString(b.signer.SignedURL(b.bucket, t.StoragePath, token))
		sb.WriteString("\n")
	}
	return sb.String()
}

// Publish 上传 master，返回对象路径
func (b *MasterPlaylistBuilder) Publish(ctx context.Context, hlsBasePath string, tiers []vo.TierResult, token string) (string, error) {
	key := MasterPlaylistKey(hlsBasePath)
	err := b.uploader.UploadOne(ctx, gateway.UploadObject{
		Data:         []byte(b.Render(tiers, token)),
		ObjectKey:    key,
		ContentType:  ContentTypeFor(MasterPlaylistName),
		CacheControl: gateway.CacheControlRevalidate,
	})
	if err != nil {
		return "", fmt.Errorf("publish master playlist: %w", err)
	}
	return key, nil
}
