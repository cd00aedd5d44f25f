package service

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"media-transcode-service/ddd/domain/gateway"
)

var uriAttrPattern = regexp.MustCompile(`URI="([^"]*)"`)

// ManifestRewriter 将 playlist 中的相对引用改写为带 token 的绝对地址，
// 使客户端无需单独签名每个切片即可播放
type ManifestRewriter struct {
	signer gateway.URLSigner
}

// NewManifestRewriter 创建改写器
func NewManifestRewriter(signer gateway.URLSigner) *ManifestRewriter {
	return &ManifestRewriter{signer: signer}
}

// Rewrite 原地改写本地 manifest 文件
func (r *ManifestRewriter) Rewrite(manifestPath, bucket, basePath, token string) error {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("read manifest %s: %w", manifestPath, err)
	}
	out := r.RewriteContent(string(data), bucket, basePath, token)
	if err := os.WriteFile(manifestPath, []byte(out), 0o644); err != nil {
		return fmt.Errorf("write manifest %s: %w", manifestPath, err)
	}
	return nil
}

// RewriteContent rewrites every relative reference found on URI lines and in
// URI="..." attributes. Blank lines, plain comments and absolute references
// pass through untouched.
func (r *ManifestRewriter) RewriteContent(content, bucket, basePath, token string) string {
	var b strings.Builder
	b.Grow(len(content) * 2)

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	first := true
	for scanner.Scan() {
		if !first {
			b.WriteByte('\n')
		}
		first = false
		b.WriteString(r.rewriteLine(scanner.Text(), bucket, basePath, token))
	}
	if strings.HasSuffix(content, "\n") {
		b.WriteByte('\n')
	}
	return b.String()
}

func (r *ManifestRewriter) rewriteLine(line, bucket, basePath, token string) string {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return line
	case strings.HasPrefix(trimmed, "#"):
		if !strings.Contains(trimmed, `URI="`) {
			return line
		}
		return uriAttrPattern.ReplaceAllStringFunc(line, func(attr string) string {
			ref := uriAttrPattern.FindStringSubmatch(attr)[1]
			if isAbsoluteRef(ref) {
				return attr
			}
			return `URI="` + r.sign(ref, bucket, basePath, token) + `"`
		})
	case isAbsoluteRef(trimmed):
		return line
	default:
		return r.sign(trimmed, bucket, basePath, token)
	}
}

func (r *ManifestRewriter) sign(ref, bucket, basePath, token string) string {
	// 去掉 ffmpeg 偶尔附带的查询串
	if i := strings.IndexByte(ref, '?'); i >= 0 {
		ref = ref[:i]
	}
	key := path.Join(basePath, ref)
	return r.signer.SignedURL(bucket, key, token)
}

func isAbsoluteRef(ref string) bool {
	return strings.Contains(ref, "://") || strings.HasPrefix(ref, "/") || strings.HasPrefix(ref, "data:")
}
