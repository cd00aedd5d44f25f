package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-transcode-service/ddd/application/cqe"
	"media-transcode-service/ddd/application/dto"
	"media-transcode-service/ddd/domain/entity"
	"media-transcode-service/ddd/domain/gateway"
	"media-transcode-service/ddd/domain/service"
	"media-transcode-service/ddd/domain/vo"
	"media-transcode-service/ddd/infrastructure/queue"
	"media-transcode-service/pkg/config"
	"media-transcode-service/pkg/errno"
	"media-transcode-service/pkg/restapi"
)

// stubApp 按字段返回预置结果
type stubApp struct {
	ingestResp *dto.IngestResultDto
	ingestErr  error
	jobErr     error
	jobs       []*entity.TranscodeJobMessage
	media      *dto.MediaDto
	mediaErr   error
	reset      *dto.ResetStuckDto
	playback   string
	playErr    error
}

func (s *stubApp) HandleObjectFinalized(ctx context.Context, req *cqe.ObjectFinalizedReq) (*dto.IngestResultDto, error) {
	return s.ingestResp, s.ingestErr
}

func (s *stubApp) HandleTranscodeJob(ctx context.Context, msg *entity.TranscodeJobMessage) error {
	s.jobs = append(s.jobs, msg)
	return s.jobErr
}

func (s *stubApp) ResetStuck(ctx context.Context) (*dto.ResetStuckDto, error) { return s.reset, nil }

func (s *stubApp) GetMedia(ctx context.Context, mediaID string) (*dto.MediaDto, error) {
	return s.media, s.mediaErr
}

func (s *stubApp) RegisterMedia(ctx context.Context, req *cqe.RegisterMediaReq) (*dto.MediaDto, error) {
	return &dto.MediaDto{MediaID: req.MediaID, SourcePath: req.SourcePath}, nil
}

func (s *stubApp) OpenPlayback(ctx context.Context, bucket, objectKey, token string) (io.ReadCloser, gateway.ObjectInfo, error) {
	if s.playErr != nil {
		return nil, gateway.ObjectInfo{}, s.playErr
	}
	return io.NopCloser(strings.NewReader(s.playback)), gateway.ObjectInfo{
		Key:          objectKey,
		Size:         int64(len(s.playback)),
		ContentType:  "application/vnd.apple.mpegurl",
		CacheControl: gateway.CacheControlRevalidate,
	}, nil
}

func newTestEngine(app *stubApp, local *queue.MemoryJobQueue, operatorKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := NewEngine(config.Default())
	NewEventController(app, local).RegisterRoutes(engine)
	NewMediaController(app).RegisterRoutes(engine)
	NewMaintenanceController(app, operatorKey).RegisterRoutes(engine)
	(&systemController{service: "media-transcode-service"}).RegisterRoutes(engine)
	return engine
}

func do(engine *gin.Engine, method, target string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) restapi.Response {
	t.Helper()
	var resp restapi.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func jobBody(t *testing.T) []byte {
	t.Helper()
	cfg, ok := vo.LookupTier("1080p")
	require.True(t, ok)
	body, err := (&entity.TranscodeJobMessage{
		MediaID:       "m1",
		QualityLevel:  "1080p",
		FilePath:      "media/u1/m1/original.mp4",
		StorageFolder: "media/u1/m1",
		HLSBasePath:   "media/u1/m1/hls",
		SharedToken:   "tok",
		QualityConfig: cfg,
	}).Encode()
	require.NoError(t, err)
	return body
}

func TestObjectFinalizedReady(t *testing.T) {
	app := &stubApp{ingestResp: &dto.IngestResultDto{MediaID: "m1", TranscodeStatus: "ready", Ladder: []string{"720p", "1080p"}}}
	engine := newTestEngine(app, queue.NewMemoryJobQueue(4), "")

	w := do(engine, http.MethodPost, "/api/v1/events/object-finalized", []byte(`{"bucket":"media","name":"media/u1/m1/original.mp4"}`), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	resp := decode(t, w)
	assert.Equal(t, errno.OK.Code, resp.Code)
	assert.Contains(t, w.Body.String(), `"transcodeStatus":"ready"`)
}

func TestObjectFinalizedInProgress(t *testing.T) {
	app := &stubApp{ingestErr: errno.NewBizError(errno.ErrJobInProgress, service.ErrJobInProgress)}
	engine := newTestEngine(app, queue.NewMemoryJobQueue(4), "")

	w := do(engine, http.MethodPost, "/api/v1/events/object-finalized", []byte(`{"name":"media/u1/m1/original.mp4"}`), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, errno.ErrJobInProgress.Code, decode(t, w).Code)
}

func TestObjectFinalizedRejectsMissingName(t *testing.T) {
	engine := newTestEngine(&stubApp{}, queue.NewMemoryJobQueue(4), "")
	w := do(engine, http.MethodPost, "/api/v1/events/object-finalized", []byte(`{"bucket":"media"}`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPushJobSynchronous(t *testing.T) {
	app := &stubApp{}
	engine := newTestEngine(app, queue.NewMemoryJobQueue(4), "")

	w := do(engine, http.MethodPost, queue.PushPath, jobBody(t), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, app.jobs, 1)
	assert.Equal(t, "m1:1080p", app.jobs[0].JobID())

	app.jobErr = errno.NewBizError(errno.ErrJobInProgress, service.ErrJobInProgress)
	w = do(engine, http.MethodPost, queue.PushPath, jobBody(t), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPushJobAsyncUsesLocalQueue(t *testing.T) {
	app := &stubApp{}
	local := queue.NewMemoryJobQueue(1)
	engine := newTestEngine(app, local, "")

	w := do(engine, http.MethodPost, queue.PushPath+"?async=1", jobBody(t), nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, local.Size())
	assert.Empty(t, app.jobs)

	w = do(engine, http.MethodPost, queue.PushPath+"?async=1", jobBody(t), nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPushJobRejectsGarbage(t *testing.T) {
	engine := newTestEngine(&stubApp{}, queue.NewMemoryJobQueue(1), "")
	w := do(engine, http.MethodPost, queue.PushPath, []byte(`{"mediaId":`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlaybackStreamsObject(t *testing.T) {
	app := &stubApp{playback: "#EXTM3U\n"}
	engine := newTestEngine(app, queue.NewMemoryJobQueue(1), "")

	w := do(engine, http.MethodGet, "/v0/b/media/o/media/u1/m1/hls/master.m3u8?token=tok", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "#EXTM3U\n", w.Body.String())
	assert.Equal(t, "application/vnd.apple.mpegurl", w.Header().Get("Content-Type"))
	assert.Equal(t, gateway.CacheControlRevalidate, w.Header().Get("Cache-Control"))

	app.playErr = errno.NewBizError(errno.ErrTokenInvalid, errors.New("expired"))
	w = do(engine, http.MethodGet, "/v0/b/media/o/media/u1/m1/hls/master.m3u8?token=bad", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetMediaNotFound(t *testing.T) {
	engine := newTestEngine(&stubApp{mediaErr: errno.ErrMediaNotFound}, queue.NewMemoryJobQueue(1), "")
	w := do(engine, http.MethodGet, "/api/v1/media/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResetStuckRequiresOperatorKey(t *testing.T) {
	app := &stubApp{reset: &dto.ResetStuckDto{Corrected: 2, Scanned: 3}}
	engine := newTestEngine(app, queue.NewMemoryJobQueue(1), "secret")

	w := do(engine, http.MethodPost, "/api/v1/maintenance/reset-stuck", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(engine, http.MethodPost, "/api/v1/maintenance/reset-stuck", nil, map[string]string{"X-Operator-Key": "secret"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"corrected":2`)
}

func TestHealth(t *testing.T) {
	engine := newTestEngine(&stubApp{}, queue.NewMemoryJobQueue(1), "")
	w := do(engine, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
