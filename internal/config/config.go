package config

import (
	"settlement-sol/internal/mq"
	"settlement-sol/pkg/logger"

	"github.com/zeromicro/go-zero/rest"
)

type LogConfig struct {
	Format   string `yaml:"format"`   // 日志格式，支持 "console" 或 "json"
	LogDir   string `yaml:"log_dir"`  // 日志目录（可为相对路径或绝对路径）
	Level    string `yaml:"level"`    // 日志级别：debug / info / warn / error
	Compress bool   `yaml:"compress"` // 是否压缩旧日志文件
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

// RpcConfig 表示链上读路径配置
type RpcConfig struct {
	Endpoint  string `yaml:"endpoint"`   // Solana JSON-RPC 地址，例如 https://api.mainnet-beta.solana.com
	ProgramID string `yaml:"program_id"` // 结算程序地址（base58）
	TimeoutS  int    `yaml:"timeout_s"`  // 单次账户读取超时（秒）
}

// StorageConfig 表示上游元数据存储配置
type StorageConfig struct {
	Endpoint string `yaml:"endpoint"`  // 对象存储 HTTP 地址
	TimeoutS int    `yaml:"timeout_s"` // 单次请求超时（秒）
}

// ChallengeConfig 表示登录/授权挑战配置
type ChallengeConfig struct {
	TTLSec int `yaml:"ttl_sec"` // 挑战消息有效期（秒）
}

// KafkaProducerConfig 表示 Kafka 生产者相关配置
type KafkaProducerConfig struct {
	Brokers   string `yaml:"brokers"`    // Kafka broker 地址，多个用英文逗号分隔
	BatchSize int    `yaml:"batch_size"` // 批处理大小（单位字节）
	LingerMs  int    `yaml:"linger_ms"`  // 批处理最大延迟（毫秒）

	Topics struct {
		Metadata string `yaml:"metadata"` // 元数据变更事件的 Kafka topic
	} `yaml:"topics"`

	Partitions struct {
		Metadata int `yaml:"metadata"` // metadata topic 的分区数
	} `yaml:"partitions"`

	SendTimeoutMs int `yaml:"send_timeout_ms"` // 单条事件发送并等待 ack 的超时（毫秒）
}

func (c *KafkaProducerConfig) ToKafkaOption() mq.KafkaProducerOption {
	return mq.KafkaProducerOption{
		Brokers:   c.Brokers,
		BatchSize: c.BatchSize,
		LingerMs:  c.LingerMs,
		Topics: []struct {
			Topic      string
			Partitions int
		}{
			{Topic: c.Topics.Metadata, Partitions: c.Partitions.Metadata},
		},
	}
}

// GatewayConfig 是主配置结构体，用于驱动网关服务
type GatewayConfig struct {
	LogConf           LogConfig           `yaml:"logger"`         // 日志配置
	RestConf          rest.RestConf       `yaml:"rest"`           // HTTP 服务配置
	KafkaProducerConf KafkaProducerConfig `yaml:"kafka_producer"` // Kafka 生产者配置

	RedisAddr     string          `yaml:"redis_addr"` // Redis 地址（挑战存储）
	RpcConf       RpcConfig       `yaml:"rpc"`        // 链上读路径配置
	StorageConf   StorageConfig   `yaml:"storage"`    // 元数据存储配置
	ChallengeConf ChallengeConfig `yaml:"challenge"`  // 挑战配置
}
