package mq

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// 网关对外发布的事件类型
const (
	EventTypeListingMetadataUpdated uint32 = 1
)

// ListingMetadataUpdated 在元数据写入成功后发布，供下游索引服务消费。
type ListingMetadataUpdated struct {
	Listing   string `json:"listing"`    // listing 账户地址（base58）
	Version   uint32 `json:"version"`    // 写入文档的版本号
	UpdatedAt int64  `json:"updated_at"` // 写入时间（unix 秒）
}

// EncodeEvent 将事件编码为带类型前缀的二进制数据：
// - 前 4 字节为事件类型（uint32，小端序）
// - 后续为 JSON 序列化的事件体
func EncodeEvent(eventType uint32, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("EncodeEvent: marshal %T: %w", payload, err)
	}
	buf := make([]byte, 4, 4+len(body))
	binary.LittleEndian.PutUint32(buf[:4], eventType)
	return append(buf, body...), nil
}

// DecodeEvent 拆出事件类型前缀并返回事件体字节。
func DecodeEvent(data []byte) (uint32, []byte, error) {
	if len(data) < 4 {
		return 0, nil, fmt.Errorf("DecodeEvent: data too short (%d bytes)", len(data))
	}
	return binary.LittleEndian.Uint32(data[:4]), data[4:], nil
}
