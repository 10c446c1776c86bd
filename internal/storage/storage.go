package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// 元数据文档：开放 key/value 结构，元素要么内联值，要么 URI 引用。
// 文档只做描述用途，不参与结算。

var ErrNotFound = errors.New("storage: document not found")

type MetadataElement struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
	Uri   string `json:"uri,omitempty"`
}

type MetadataDocument struct {
	Version  uint32            `json:"version"`
	Elements []MetadataElement `json:"elements"`
}

// Store 按 listing 地址读写元数据文档。
type Store interface {
	Get(ctx context.Context, listingKey string) (*MetadataDocument, error)
	Put(ctx context.Context, listingKey string, doc *MetadataDocument) error
}

// HTTPStore 对接上游对象存储的 HTTP 接口：
// GET/PUT {endpoint}/documents/{listingKey}，文档体为 JSON。
type HTTPStore struct {
	endpoint string
	client   *http.Client
}

func NewHTTPStore(endpoint string, timeout time.Duration) *HTTPStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPStore{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

func (s *HTTPStore) documentURL(listingKey string) string {
	return fmt.Sprintf("%s/documents/%s", s.endpoint, listingKey)
}

func (s *HTTPStore) Get(ctx context.Context, listingKey string) (*MetadataDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.documentURL(listingKey), nil)
	if err != nil {
		return nil, fmt.Errorf("storage get %s: %w", listingKey, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage get %s: %w", listingKey, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, listingKey)
	default:
		return nil, fmt.Errorf("storage get %s: upstream status %d", listingKey, resp.StatusCode)
	}

	var doc MetadataDocument
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("storage get %s: decode: %w", listingKey, err)
	}
	return &doc, nil
}

func (s *HTTPStore) Put(ctx context.Context, listingKey string, doc *MetadataDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("storage put %s: marshal: %w", listingKey, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.documentURL(listingKey), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("storage put %s: %w", listingKey, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("storage put %s: %w", listingKey, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	default:
		return fmt.Errorf("storage put %s: upstream status %d", listingKey, resp.StatusCode)
	}
}

// MemoryStore 进程内实现，用于测试与本地模式。
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*MetadataDocument
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*MetadataDocument)}
}

func (s *MemoryStore) Get(_ context.Context, listingKey string) (*MetadataDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[listingKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, listingKey)
	}
	clone := *doc
	clone.Elements = append([]MetadataElement(nil), doc.Elements...)
	return &clone, nil
}

func (s *MemoryStore) Put(_ context.Context, listingKey string, doc *MetadataDocument) error {
	clone := *doc
	clone.Elements = append([]MetadataElement(nil), doc.Elements...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[listingKey] = &clone
	return nil
}
