package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server          ServerConfig          `mapstructure:"server"`
	Database        DatabaseConfig        `mapstructure:"database"`
	Redis           RedisConfig           `mapstructure:"redis"`
	Kafka           KafkaConfig           `mapstructure:"kafka"`
	Log             LogConfig             `mapstructure:"log"`
	Minio           MinioConfig           `mapstructure:"minio"`
	Storage         StorageConfig         `mapstructure:"storage"`
	Public          PublicConfig          `mapstructure:"public"`
	Signing         SigningConfig         `mapstructure:"signing"`
	Transcode       TranscodeConfig       `mapstructure:"transcode"`
	Ingestion       IngestionConfig       `mapstructure:"ingestion"`
	Upload          UploadConfig          `mapstructure:"upload"`
	Queue           QueueConfig           `mapstructure:"queue"`
	Maintenance     MaintenanceConfig     `mapstructure:"maintenance"`
	Worker          WorkerConfig          `mapstructure:"worker"`
	Etcd            EtcdConfig            `mapstructure:"etcd"`
	ServiceRegistry ServiceRegistryConfig `mapstructure:"service_registry"`
	Profiling       ProfilingConfig       `mapstructure:"profiling"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // mysql|memory
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	Charset         string        `mapstructure:"charset"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	EnableTLS    bool          `mapstructure:"enable_tls"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	BootstrapServers []string `mapstructure:"bootstrap_servers"`
	ClientID         string   `mapstructure:"client_id"`
}

// MinioConfig MinIO配置
type MinioConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKey       string `mapstructure:"access_key"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	// ListenEvents 订阅桶通知作为 object-finalized 事件源
	ListenEvents bool `mapstructure:"listen_events"`
}

// StorageConfig 选择对象存储实现
type StorageConfig struct {
	Driver   string `mapstructure:"driver"` // minio|local
	LocalDir string `mapstructure:"local_dir"`
}

// PublicConfig 对外访问配置
type PublicConfig struct {
	StorageBase string `mapstructure:"storage_base"`
}

// SigningConfig 签名URL配置
type SigningConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// TranscodeConfig 转码配置
type TranscodeConfig struct {
	FFmpeg             FFmpegConfig             `mapstructure:"ffmpeg"`
	UploadPrefix       string                   `mapstructure:"upload_prefix"`
	SegmentDuration    int                      `mapstructure:"segment_duration"`
	LowestTierListSize int                      `mapstructure:"lowest_tier_list_size"`
	TierTimeouts       map[string]time.Duration `mapstructure:"tier_timeouts"`
}

// FFmpegConfig FFmpeg相关配置
type FFmpegConfig struct {
	BinaryPath      string `mapstructure:"binary_path"`
	ProbeBinaryPath string `mapstructure:"probe_binary_path"`
	TempDir         string `mapstructure:"temp_dir"`
	VideoCodec      string `mapstructure:"video_codec"`
	Threads         int    `mapstructure:"threads"`
}

// IngestionConfig controls how a finalized object is matched to its metadata record.
type IngestionConfig struct {
	ResolveAttempts  int           `mapstructure:"resolve_attempts"`
	ResolveBaseDelay time.Duration `mapstructure:"resolve_base_delay"`
	ResolveMaxDelay  time.Duration `mapstructure:"resolve_max_delay"`
	RecentScanLimit  int           `mapstructure:"recent_scan_limit"`
}

// UploadConfig controls artifact upload retries.
type UploadConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	Parallelism int           `mapstructure:"parallelism"`
}

// QueueConfig 任务队列配置
type QueueConfig struct {
	Driver         string        `mapstructure:"driver"` // kafka|memory|http
	Topic          string        `mapstructure:"topic"`
	GroupID        string        `mapstructure:"group_id"`
	MemoryCapacity int           `mapstructure:"memory_capacity"`
	PushTimeout    time.Duration `mapstructure:"push_timeout"`
}

// WorkerConfig Worker相关配置
type WorkerConfig struct {
	WorkerID           string `mapstructure:"worker_id"`
	MaxConcurrentTasks int    `mapstructure:"max_concurrent_tasks"`
}

// MaintenanceConfig 卡住任务修复配置
type MaintenanceConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	StuckAfter  time.Duration `mapstructure:"stuck_after"`
	BatchSize   int           `mapstructure:"batch_size"`
	OperatorKey string        `mapstructure:"operator_key"`
}

// EtcdConfig etcd 客户端配置
type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
}

// ServiceRegistryConfig registration configuration.
type ServiceRegistryConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	ServiceName     string        `mapstructure:"service_name"`
	ServiceID       string        `mapstructure:"service_id"`
	RegisterHost    string        `mapstructure:"register_host"`
	TTL             time.Duration `mapstructure:"ttl"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// ProfilingConfig continuous profiling.
type ProfilingConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ServerAddress string `mapstructure:"server_address"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}

var (
	globalMu  sync.RWMutex
	globalCfg *Config
)

// SetGlobalConfig 设置全局配置
func SetGlobalConfig(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalCfg = cfg
}

// GetGlobalConfig 获取全局配置
func GetGlobalConfig() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalCfg
}

// Load 加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("storage.driver", "minio")
	v.SetDefault("queue.driver", "kafka")
	v.SetDefault("queue.topic", "media.transcode.jobs")
	v.SetDefault("queue.group_id", "media-transcode-service-group")
	v.SetDefault("kafka.bootstrap_servers", []string{"localhost:29092"})
	v.SetDefault("kafka.client_id", "media-transcode-service")
	v.SetDefault("maintenance.enabled", true)

	// 设置环境变量前缀
	v.SetEnvPrefix("MEDIA_TRANSCODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.normalize()

	return &config, nil
}

// Default returns a configuration with every default applied, without reading a file.
func Default() *Config {
	c := &Config{}
	c.Database.Driver = "memory"
	c.Storage.Driver = "local"
	c.Queue.Driver = "memory"
	c.normalize()
	return c
}

// normalize 补全配置的默认值
func (c *Config) normalize() {
	if c.Minio.AccessKeyID == "" {
		c.Minio.AccessKeyID = c.Minio.AccessKey
	}
	if c.Minio.SecretAccessKey == "" {
		c.Minio.SecretAccessKey = c.Minio.SecretKey
	}
	if c.Minio.BucketName == "" {
		c.Minio.BucketName = "media"
	}
	if c.Storage.LocalDir == "" {
		c.Storage.LocalDir = "storage"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8083
	}

	if c.Transcode.FFmpeg.TempDir == "" {
		c.Transcode.FFmpeg.TempDir = "/tmp/transcode"
	}
	if c.Transcode.FFmpeg.BinaryPath == "" {
		c.Transcode.FFmpeg.BinaryPath = "ffmpeg"
	}
	if c.Transcode.FFmpeg.ProbeBinaryPath == "" {
		c.Transcode.FFmpeg.ProbeBinaryPath = "ffprobe"
	}
	if c.Transcode.FFmpeg.VideoCodec == "" {
		c.Transcode.FFmpeg.VideoCodec = "libx264"
	}
	if c.Transcode.FFmpeg.Threads < 0 {
		c.Transcode.FFmpeg.Threads = 0
	}
	if c.Transcode.UploadPrefix == "" {
		c.Transcode.UploadPrefix = "media/"
	}
	if c.Transcode.SegmentDuration <= 0 {
		c.Transcode.SegmentDuration = 6
	}
	if c.Transcode.LowestTierListSize <= 0 {
		c.Transcode.LowestTierListSize = 1000
	}

	if c.Ingestion.ResolveAttempts <= 0 {
		c.Ingestion.ResolveAttempts = 15
	}
	if c.Ingestion.ResolveBaseDelay <= 0 {
		c.Ingestion.ResolveBaseDelay = 300 * time.Millisecond
	}
	if c.Ingestion.ResolveMaxDelay <= 0 {
		c.Ingestion.ResolveMaxDelay = 5 * time.Second
	}
	if c.Ingestion.RecentScanLimit <= 0 {
		c.Ingestion.RecentScanLimit = 50
	}

	if c.Upload.MaxAttempts <= 0 {
		c.Upload.MaxAttempts = 4
	}
	if c.Upload.BaseDelay <= 0 {
		c.Upload.BaseDelay = 500 * time.Millisecond
	}
	if c.Upload.MaxDelay <= 0 {
		c.Upload.MaxDelay = 8 * time.Second
	}
	if c.Upload.Parallelism <= 0 {
		c.Upload.Parallelism = 4
	}

	if c.Queue.MemoryCapacity <= 0 {
		c.Queue.MemoryCapacity = 100
	}
	if c.Queue.PushTimeout <= 0 {
		c.Queue.PushTimeout = 10 * time.Second
	}
	if c.Worker.WorkerID == "" {
		c.Worker.WorkerID = "transcode-worker"
	}
	if c.Worker.MaxConcurrentTasks <= 0 {
		c.Worker.MaxConcurrentTasks = 2
	}

	if c.Maintenance.Interval <= 0 {
		c.Maintenance.Interval = 10 * time.Minute
	}
	if c.Maintenance.StuckAfter <= 0 {
		c.Maintenance.StuckAfter = 45 * time.Minute
	}
	if c.Maintenance.BatchSize <= 0 {
		c.Maintenance.BatchSize = 100
	}

	if c.Signing.Issuer == "" {
		c.Signing.Issuer = "media-transcode-service"
	}
	if c.Etcd.DialTimeout <= 0 {
		c.Etcd.DialTimeout = 5 * time.Second
	}
	if c.ServiceRegistry.ServiceName == "" {
		c.ServiceRegistry.ServiceName = "media-transcode-service"
	}
	if c.ServiceRegistry.TTL == 0 {
		c.ServiceRegistry.TTL = 30 * time.Second
	}
	if c.ServiceRegistry.RefreshInterval == 0 {
		c.ServiceRegistry.RefreshInterval = 10 * time.Second
	}
	if len(c.Kafka.BootstrapServers) == 0 {
		c.Kafka.BootstrapServers = []string{"localhost:29092"}
	}
	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = "media-transcode-service"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// TierTimeout 返回某一档位的超时时间，未配置时返回 fallback
func (c *TranscodeConfig) TierTimeout(name string, fallback time.Duration) time.Duration {
	if d, ok := c.TierTimeouts[strings.ToLower(name)]; ok && d > 0 {
		return d
	}
	return fallback
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	charset := c.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database, charset)
}

// GetRedisAddr 获取Redis地址
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
