package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/lildude/stravalytics/internal/cache"
)

const (
	// TokenKey is the cache key of the token record when it is kept in a cache.
	TokenKey = "strava_auth_token"
	// TokenFile is the name of the token record file under the cache directory.
	TokenFile = "strava_token.json"
)

// Store persists the single token record.
type Store interface {
	// Load returns nil, nil when no complete record has been saved.
	Load(ctx context.Context) (*Record, error)
	// Save fully replaces the stored record.
	Save(ctx context.Context, rec *Record) error
}

// FileStore keeps the record in a JSON file readable only by the owner.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(_ context.Context) (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	return decodeRecord(data)
}

func (s *FileStore) Save(_ context.Context, rec *Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := cache.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

// CacheStore keeps the record under TokenKey in a cache, e.g. Redis.
type CacheStore struct {
	c cache.Cache
}

func NewCacheStore(c cache.Cache) *CacheStore {
	return &CacheStore{c: c}
}

func (s *CacheStore) Load(ctx context.Context) (*Record, error) {
	data, err := s.c.Get(ctx, TokenKey)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMissing) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cached token: %w", err)
	}
	return decodeRecord(data)
}

func (s *CacheStore) Save(ctx context.Context, rec *Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := s.c.Set(ctx, TokenKey, data); err != nil {
		return fmt.Errorf("writing cached token: %w", err)
	}
	return nil
}

func decodeRecord(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing token record: %w", err)
	}
	// A partial record is as good as none.
	if !rec.complete() {
		return nil, nil
	}
	return &rec, nil
}

func encodeRecord(rec *Record) ([]byte, error) {
	if !rec.complete() {
		return nil, errors.New("cannot save an incomplete token record")
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding token record: %w", err)
	}
	return data, nil
}
