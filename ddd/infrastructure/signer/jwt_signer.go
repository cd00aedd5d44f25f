package signer

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"media-transcode-service/pkg/config"
)

// ErrInvalidToken token 无法通过校验或不覆盖请求的对象
var ErrInvalidToken = errors.New("invalid download token")

// PlaybackClaims 资产共享 token 的声明，scope 为 HLS 根目录
type PlaybackClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// JWTSigner 基于 HS256 的下载 token 签发与校验
type JWTSigner struct {
	secret     []byte
	issuer     string
	publicBase string
	now        func() time.Time
}

// NewJWTSigner 创建签名器
func NewJWTSigner(signing config.SigningConfig, public config.PublicConfig) (*JWTSigner, error) {
	if strings.TrimSpace(signing.Secret) == "" {
		return nil, errors.New("signing.secret is required")
	}
	base := strings.TrimRight(strings.TrimSpace(public.StorageBase), "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &JWTSigner{
		secret:     []byte(signing.Secret),
		issuer:     signing.Issuer,
		publicBase: base,
		now:        time.Now,
	}, nil
}

// IssueToken 签发不过期的共享 token，同一资产的所有产物共用
func (s *JWTSigner) IssueToken(mediaID, scope string) (string, error) {
	claims := PlaybackClaims{
		Scope: strings.Trim(scope, "/"),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   s.issuer,
			Subject:  mediaID,
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// SignedURL {base}/v0/b/{bucket}/o/{escaped key}?alt=media&token=...
func (s *JWTSigner) SignedURL(bucket, objectKey, token string) string {
	q := url.Values{}
	q.Set("alt", "media")
	q.Set("token", token)
	return fmt.Sprintf("%s/v0/b/%s/o/%s?%s", s.publicBase, url.PathEscape(bucket), url.PathEscape(strings.TrimLeft(objectKey, "/")), q.Encode())
}

// Verify 校验签名、签发方以及对象是否在 token 的 scope 内
func (s *JWTSigner) Verify(token, objectKey string) error {
	claims := &PlaybackClaims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	key := strings.TrimLeft(objectKey, "/")
	if claims.Scope == "" || !strings.HasPrefix(key, claims.Scope+"/") {
		return fmt.Errorf("%w: object outside token scope", ErrInvalidToken)
	}
	return nil
}
