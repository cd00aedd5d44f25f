package queue

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticPicker struct {
	addr string
	err  error
}

func (p staticPicker) PickOne(string) (string, error) { return p.addr, p.err }

func TestHTTPPushQueueDelivers(t *testing.T) {
	var gotBody, gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody, gotKey, gotPath = string(b), r.Header.Get("X-Job-Key"), r.URL.Path
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	q := NewHTTPPushQueue(staticPicker{addr: srv.URL}, "media-transcode-worker", 0)
	require.NoError(t, q.Enqueue(context.Background(), "m1", []byte(`{"mediaId":"m1"}`)))
	assert.Equal(t, `{"mediaId":"m1"}`, gotBody)
	assert.Equal(t, "m1", gotKey)
	assert.Equal(t, PushPath, gotPath)
}

func TestHTTPPushQueueRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	q := NewHTTPPushQueue(staticPicker{addr: srv.URL}, "svc", 0)
	err := q.Enqueue(context.Background(), "m1", []byte("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPPushQueueNoWorker(t *testing.T) {
	q := NewHTTPPushQueue(staticPicker{err: errors.New("no instances")}, "svc", 0)
	assert.Error(t, q.Enqueue(context.Background(), "m1", nil))
}
