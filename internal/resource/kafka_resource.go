package resource

import (
	"media-transcode-service/pkg/config"
	"media-transcode-service/pkg/kafka"
	"media-transcode-service/pkg/manager"
)

// KafkaResource 仅在 queue.driver=kafka 时打开 kafka 客户端
type KafkaResource struct {
	opened bool
}

type KafkaResourcePlugin struct{}

func (p *KafkaResourcePlugin) Name() string { return "kafka" }

func (p *KafkaResourcePlugin) MustCreateResource() manager.Resource { return &KafkaResource{} }

func (r *KafkaResource) MustOpen() {
	cfg := config.GetGlobalConfig()
	if cfg == nil || cfg.Queue.Driver != "kafka" {
		return
	}
	kafka.DefaultClient().MustOpen()
	r.opened = true
}

func (r *KafkaResource) Close() {
	if r.opened {
		kafka.DefaultClient().Close()
	}
}
