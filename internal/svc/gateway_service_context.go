package svc

import (
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/redis/go-redis/v9"

	"settlement-sol/internal/config"
	"settlement-sol/internal/mq"
	"settlement-sol/internal/rpcclient"
	"settlement-sol/internal/session"
	"settlement-sol/internal/storage"
	"settlement-sol/internal/types"
	"settlement-sol/pkg/logger"
)

// GatewayServiceContext 包含网关服务资源
type GatewayServiceContext struct {
	Config     config.GatewayConfig
	Redis      *redis.Client
	Chain      rpcclient.Reader
	Challenges session.ChallengeStore
	Storage    storage.Store
	Producer   *kafka.Producer
	Publisher  *mq.EventPublisher
}

// NewGatewayServiceContext 创建一个新的网关服务上下文
func NewGatewayServiceContext(c config.GatewayConfig) (*GatewayServiceContext, error) {
	programID, err := types.TryPubkeyFromBase58(c.RpcConf.ProgramID)
	if err != nil {
		logger.Errorf("结算程序地址无效: %q: %v", c.RpcConf.ProgramID, err)
		return nil, err
	}

	// 1. 初始化 Kafka 生产者
	producer, err := mq.NewKafkaProducer(c.KafkaProducerConf.ToKafkaOption())
	if err != nil {
		logger.Errorf("Kafka producer 初始化失败: %v", err)
		return nil, err
	}

	// 2. 初始化 Redis 客户端（挑战存储）
	rdb := redis.NewClient(&redis.Options{
		Addr: c.RedisAddr, // eg: "127.0.0.1:6379"
	})

	// 3. 构造上下文
	ctx := &GatewayServiceContext{
		Config:     c,
		Redis:      rdb,
		Chain:      rpcclient.NewClient(c.RpcConf.Endpoint, programID, time.Duration(c.RpcConf.TimeoutS)*time.Second),
		Challenges: session.NewRedisChallengeStore(rdb, time.Duration(c.ChallengeConf.TTLSec)*time.Second),
		Storage:    storage.NewHTTPStore(c.StorageConf.Endpoint, time.Duration(c.StorageConf.TimeoutS)*time.Second),
		Producer:   producer,
		Publisher:  mq.NewEventPublisher(producer, c.KafkaProducerConf.Topics.Metadata, time.Duration(c.KafkaProducerConf.SendTimeoutMs)*time.Millisecond),
	}

	logger.Infof("网关服务上下文初始化完成")
	return ctx, nil
}

// Close 关闭服务上下文中的资源
func (ctx *GatewayServiceContext) Close() {
	if ctx.Producer != nil {
		ctx.Producer.Close()
	}
	if ctx.Redis != nil {
		_ = ctx.Redis.Close()
	}
}
