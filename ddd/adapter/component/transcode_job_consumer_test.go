package component

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	appsvc "media-transcode-service/ddd/application/app"
	"media-transcode-service/ddd/domain/entity"
	"media-transcode-service/ddd/domain/vo"
	"media-transcode-service/pkg/errno"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeReader 按顺序返回预置消息，取完后阻塞到 ctx 结束
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) Committed() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func jobMessage(t *testing.T, offset int64, mediaID, tier string) kafka.Message {
	t.Helper()
	cfg, ok := vo.LookupTier(tier)
	require.True(t, ok)
	body, err := (&entity.TranscodeJobMessage{
		MediaID:       mediaID,
		QualityLevel:  tier,
		FilePath:      "media/u1/" + mediaID + "/original.mp4",
		StorageFolder: "media/u1/" + mediaID,
		HLSBasePath:   "media/u1/" + mediaID + "/hls",
		SharedToken:   "tok",
		QualityConfig: cfg,
	}).Encode()
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: body}
}

func newConsumer(reader *fakeReader, handle func(ctx context.Context, msg *entity.TranscodeJobMessage) error) *transcodeJobConsumer {
	return &transcodeJobConsumer{
		handle:     handle,
		retryable:  appsvc.Redeliverable,
		newReader:  func() messageReader { return reader },
		readers:    1,
		retryDelay: time.Millisecond,
		maxAttempt: 3,
	}
}

func TestConsumerCommitsAfterHandling(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		jobMessage(t, 1, "m1", "1080p"),
		{Offset: 2, Value: []byte("not json")},
		jobMessage(t, 3, "m2", "1080p"),
	}}
	var mu sync.Mutex
	var seen []string
	c := newConsumer(reader, func(ctx context.Context, msg *entity.TranscodeJobMessage) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, msg.JobID())
		return nil
	})
	require.NoError(t, c.Start())
	require.Eventually(t, func() bool { return len(reader.Committed()) == 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop())

	assert.Equal(t, []int64{1, 2, 3}, reader.Committed())
	assert.Equal(t, []string{"m1:1080p", "m2:1080p"}, seen)
}

func TestConsumerRetriesRedeliverableErrors(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{jobMessage(t, 7, "m1", "1080p")}}
	var mu sync.Mutex
	calls := 0
	c := newConsumer(reader, func(ctx context.Context, msg *entity.TranscodeJobMessage) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 3 {
			return errno.NewBizError(errno.ErrJobInProgress, errors.New("lease held"))
		}
		return nil
	})
	require.NoError(t, c.Start())
	require.Eventually(t, func() bool { return len(reader.Committed()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, calls)
}

func TestConsumerDropsPermanentErrors(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{jobMessage(t, 9, "gone", "1080p")}}
	var mu sync.Mutex
	calls := 0
	c := newConsumer(reader, func(ctx context.Context, msg *entity.TranscodeJobMessage) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return errno.NewBizError(errno.ErrMediaNotFound, errors.New("no record"))
	})
	require.NoError(t, c.Start())
	require.Eventually(t, func() bool { return len(reader.Committed()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}
