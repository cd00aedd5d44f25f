package component

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"

	appsvc "media-transcode-service/ddd/application/app"
	"media-transcode-service/ddd/domain/entity"
	pkgkafka "media-transcode-service/pkg/kafka"
	"media-transcode-service/pkg/logger"
	"media-transcode-service/pkg/manager"
)

// TranscodeJobConsumerPlugin queue.driver=kafka 时消费后台档位任务
type TranscodeJobConsumerPlugin struct{}

func (p *TranscodeJobConsumerPlugin) Name() string { return "transcodeJobConsumer" }

func (p *TranscodeJobConsumerPlugin) MustCreateComponent(deps *manager.Dependencies) manager.Component {
	cfg := configFrom(deps)
	if cfg.Queue.Driver != "kafka" {
		return nil
	}
	app := appFrom(deps)
	readers := cfg.Worker.MaxConcurrentTasks
	if readers <= 0 {
		readers = 1
	}
	return &transcodeJobConsumer{
		handle:     app.HandleTranscodeJob,
		retryable:  appsvc.Redeliverable,
		readers:    readers,
		retryDelay: 5 * time.Second,
		maxAttempt: 5,
		newReader: func() messageReader {
			return pkgkafka.DefaultClient().Reader(cfg.Queue.Topic, cfg.Queue.GroupID)
		},
	}
}

// messageReader *kafka.Reader 的子集
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type transcodeJobConsumer struct {
	handle     func(ctx context.Context, msg *entity.TranscodeJobMessage) error
	retryable  func(error) bool
	newReader  func() messageReader
	readers    int
	retryDelay time.Duration
	maxAttempt int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (c *transcodeJobConsumer) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	for i := 0; i < c.readers; i++ {
		reader := c.newReader()
		c.wg.Add(1)
		go func(slot int) {
			defer c.wg.Done()
			defer reader.Close()
			c.consume(ctx, reader, slot)
		}(i)
	}
	logger.Infof("Kafka job consumer started readers=%d", c.readers)
	return nil
}

func (c *transcodeJobConsumer) consume(ctx context.Context, reader messageReader, slot int) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				logger.Debug("Kafka reader EOF")
				return
			}
			logger.Warnf("Kafka fetch error slot=%d error=%s", slot, err.Error())
			if !c.sleep(ctx) {
				return
			}
			continue
		}
		if !c.process(ctx, msg) {
			// 停机时不提交，重启后重新投递
			return
		}
		if err := reader.CommitMessages(context.WithoutCancel(ctx), msg); err != nil {
			logger.Warnf("Kafka commit failed partition=%d offset=%d error=%s", msg.Partition, msg.Offset, err.Error())
		}
	}
}

// process 处理一条消息，返回 false 表示因停机中断、不应提交
func (c *transcodeJobConsumer) process(ctx context.Context, m kafka.Message) bool {
	job, err := entity.DecodeTranscodeJob(m.Value)
	if err != nil {
		logger.Warn("undecodable job dropped", logger.Fields{"offset": m.Offset, "error": err.Error()})
		return true
	}
	for attempt := 1; ; attempt++ {
		err := c.handle(ctx, job)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		if !c.retryable(err) || attempt >= c.maxAttempt {
			logger.Error("transcode job dropped", logger.Fields{
				"job":      job.JobID(),
				"attempts": attempt,
				"error":    err.Error(),
			})
			return true
		}
		logger.Warn("transcode job will be retried", logger.Fields{
			"job":     job.JobID(),
			"attempt": attempt,
			"error":   err.Error(),
		})
		if !c.sleep(ctx) {
			return false
		}
	}
}

func (c *transcodeJobConsumer) sleep(ctx context.Context) bool {
	timer := time.NewTimer(c.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *transcodeJobConsumer) Stop() error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()
	c.wg.Wait()
	return nil
}

func (c *transcodeJobConsumer) GetName() string { return fmt.Sprintf("transcodeJobConsumer(%d)", c.readers) }
