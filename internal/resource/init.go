package resource

import "media-transcode-service/pkg/manager"

func init() {
	// 注册资源插件；各资源按配置决定是否真正建立连接
	manager.RegisterResourcePlugin(&MySqlResourcePlugin{})
	manager.RegisterResourcePlugin(&RedisResourcePlugin{})
	manager.RegisterResourcePlugin(&MinioResourcePlugin{})
	manager.RegisterResourcePlugin(&KafkaResourcePlugin{})
}
