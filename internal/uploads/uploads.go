// Package uploads holds user documents in Redis between upload and
// extraction. Entries expire on their own; the extraction service reads
// them through the same keys.
package uploads

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "upload:"

// Meta describes a stored document.
type Meta struct {
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Store keeps uploaded documents with a TTL.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// Put stores a document and returns its opaque reference.
func (s *Store) Put(ctx context.Context, meta Meta, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty document")
	}
	ref := keyPrefix + uuid.NewString()
	meta.Size = int64(len(data))
	meta.UploadedAt = time.Now().UTC()

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal upload meta: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, ref+":data", data, s.ttl)
	pipe.Set(ctx, ref+":meta", metaJSON, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return ref, nil
}

// Get returns a stored document and its metadata.
func (s *Store) Get(ctx context.Context, ref string) ([]byte, Meta, error) {
	if !strings.HasPrefix(ref, keyPrefix) {
		return nil, Meta{}, fmt.Errorf("invalid document reference %q", ref)
	}
	data, err := s.rdb.Get(ctx, ref+":data").Bytes()
	if err == redis.Nil {
		return nil, Meta{}, fmt.Errorf("document %s not found or expired", ref)
	}
	if err != nil {
		return nil, Meta{}, fmt.Errorf("load upload: %w", err)
	}
	var meta Meta
	if raw, err := s.rdb.Get(ctx, ref+":meta").Bytes(); err == nil {
		_ = json.Unmarshal(raw, &meta)
	}
	return data, meta, nil
}

// Delete removes a stored document before its TTL.
func (s *Store) Delete(ctx context.Context, ref string) error {
	if !strings.HasPrefix(ref, keyPrefix) {
		return fmt.Errorf("invalid document reference %q", ref)
	}
	return s.rdb.Del(ctx, ref+":data", ref+":meta").Err()
}
