package session

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"settlement-sol/internal/types"
)

// 挑战消息是一次性随机串，绑定 (public_key, scope)。
// 客户端用钱包私钥对消息签名，网关验签后消费该挑战，重放即失败。

const challengePrefix = "challenge"

const defaultChallengeTTL = 5 * time.Minute

// ChallengeStore 签发与消费挑战消息。
type ChallengeStore interface {
	// Issue 为 (publicKey, scope) 签发一条新挑战并覆盖旧挑战。
	Issue(ctx context.Context, publicKey, scope string) (string, error)
	// Take 取出并删除挑战（单次使用）。不存在或已过期时 found 为 false。
	Take(ctx context.Context, publicKey, scope string) (message string, found bool, err error)
}

// newChallengeMessage 生成挑战消息文本。16 字节随机 nonce 保证不可预测。
func newChallengeMessage(publicKey, scope string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("challenge nonce: %w", err)
	}
	return fmt.Sprintf("settlement-gateway | %s | %s | %s", publicKey, scope, hex.EncodeToString(nonce)), nil
}

// Verify 校验 ed25519 签名：message 必须是此前签发的挑战原文。
func Verify(publicKey types.Pubkey, message string, signature []byte) bool {
	if len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey.Bytes()), []byte(message), signature)
}

// RedisChallengeStore 把挑战放在 Redis，TTL 即挑战有效期。
type RedisChallengeStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisChallengeStore(rdb *redis.Client, ttl time.Duration) *RedisChallengeStore {
	if ttl <= 0 {
		ttl = defaultChallengeTTL
	}
	return &RedisChallengeStore{rdb: rdb, ttl: ttl}
}

func challengeKey(publicKey, scope string) string {
	return fmt.Sprintf("%s:%s:%s", challengePrefix, publicKey, scope)
}

func (s *RedisChallengeStore) Issue(ctx context.Context, publicKey, scope string) (string, error) {
	message, err := newChallengeMessage(publicKey, scope)
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, challengeKey(publicKey, scope), message, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("redis set error: %w", err)
	}
	return message, nil
}

func (s *RedisChallengeStore) Take(ctx context.Context, publicKey, scope string) (string, bool, error) {
	val, err := s.rdb.GetDel(ctx, challengeKey(publicKey, scope)).Result()
	switch {
	case err == redis.Nil:
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("redis getdel error: %w", err)
	}
	return val, true, nil
}

// MemoryChallengeStore 进程内实现，用于测试与单机部署。
type MemoryChallengeStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryChallenge
}

type memoryChallenge struct {
	message   string
	expiresAt time.Time
}

func NewMemoryChallengeStore(ttl time.Duration) *MemoryChallengeStore {
	if ttl <= 0 {
		ttl = defaultChallengeTTL
	}
	return &MemoryChallengeStore{ttl: ttl, entries: make(map[string]memoryChallenge)}
}

func (s *MemoryChallengeStore) Issue(_ context.Context, publicKey, scope string) (string, error) {
	message, err := newChallengeMessage(publicKey, scope)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[challengeKey(publicKey, scope)] = memoryChallenge{
		message:   message,
		expiresAt: time.Now().Add(s.ttl),
	}
	return message, nil
}

func (s *MemoryChallengeStore) Take(_ context.Context, publicKey, scope string) (string, bool, error) {
	key := challengeKey(publicKey, scope)
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	delete(s.entries, key)
	if time.Now().After(entry.expiresAt) {
		return "", false, nil
	}
	return entry.message, true, nil
}
