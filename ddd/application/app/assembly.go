package app

import (
	"sync"

	"media-transcode-service/ddd/domain/gateway"
	"media-transcode-service/ddd/domain/repo"
	"media-transcode-service/ddd/infrastructure/database/persistence"
	"media-transcode-service/ddd/infrastructure/executor"
	"media-transcode-service/ddd/infrastructure/lock"
	"media-transcode-service/ddd/infrastructure/queue"
	"media-transcode-service/ddd/infrastructure/signer"
	"media-transcode-service/ddd/infrastructure/storage"
	"media-transcode-service/internal/resource"
	"media-transcode-service/pkg/assert"
	"media-transcode-service/pkg/config"
	pkgkafka "media-transcode-service/pkg/kafka"
	"media-transcode-service/pkg/logger"
	"media-transcode-service/pkg/registry"
)

var (
	singleTranscodeApp TranscodeApp
	onceTranscodeApp   sync.Once
)

// DefaultTranscodeApp 按全局配置选择各驱动并组装应用服务，资源需已打开
func DefaultTranscodeApp() TranscodeApp {
	assert.NotCircular()
	onceTranscodeApp.Do(func() {
		cfg := config.GetGlobalConfig()
		if cfg == nil {
			cfg = config.Default()
		}
		deps, err := BuildDeps(cfg)
		if err != nil {
			logger.Fatal("assemble transcode app", logger.Fields{"error": err.Error()})
		}
		singleTranscodeApp = NewTranscodeAppWith(deps)
	})
	assert.NotNil(singleTranscodeApp)
	return singleTranscodeApp
}

// BuildDeps 根据配置创建仓储、存储、队列与去重实现
func BuildDeps(cfg *config.Config) (Deps, error) {
	s, err := buildStorage(cfg)
	if err != nil {
		return Deps{}, err
	}
	sig, err := signer.NewJWTSigner(cfg.Signing, cfg.Public)
	if err != nil {
		return Deps{}, err
	}
	q, err := buildQueue(cfg)
	if err != nil {
		return Deps{}, err
	}
	return Deps{
		Repo:    buildRepo(cfg),
		Storage: s,
		Engine:  executor.NewFFmpegEngine(cfg.Transcode.FFmpeg),
		Signer:  sig,
		Queue:   q,
		Dedup:   buildDedup(cfg),
		Config:  cfg,
	}, nil
}

var (
	memoryRepoOnce sync.Once
	memoryRepo     *persistence.MemoryMediaAssetRepository
)

func buildRepo(cfg *config.Config) repo.MediaAssetRepository {
	if cfg.Database.Driver == "mysql" {
		return persistence.NewMediaAssetRepository(resource.DefaultMysqlResource().MainDB())
	}
	memoryRepoOnce.Do(func() {
		memoryRepo = persistence.NewMemoryMediaAssetRepository()
	})
	return memoryRepo
}

func buildStorage(cfg *config.Config) (gateway.ObjectStorage, error) {
	if cfg.Storage.Driver == "minio" {
		return storage.NewMinioStorage(resource.DefaultMinioResource()), nil
	}
	return storage.NewLocalStorage(cfg.Storage.LocalDir, cfg.Minio.BucketName)
}

func buildQueue(cfg *config.Config) (gateway.JobQueue, error) {
	switch cfg.Queue.Driver {
	case "kafka":
		return queue.NewKafkaJobQueue(pkgkafka.DefaultClient(), cfg.Queue.Topic), nil
	case "http":
		discovery, err := registry.NewServiceDiscovery(cfg.Etcd)
		if err != nil {
			return nil, err
		}
		discovery.WatchService(cfg.ServiceRegistry.ServiceName)
		return queue.NewHTTPPushQueue(discovery, cfg.ServiceRegistry.ServiceName, cfg.Queue.PushTimeout), nil
	default:
		return queue.DefaultMemoryJobQueue(), nil
	}
}

func buildDedup(cfg *config.Config) gateway.DedupStore {
	if cfg.Redis.Enabled {
		return lock.NewRedisDedupStore(resource.DefaultRedisResource().Prefixed())
	}
	return lock.NewMemoryDedupStore()
}
