// Package cache implements the local (purpose, key) → payload stores used for
// raw API responses and the token record: plain files on disk or Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrCacheMissing is returned when a cache entry has never been populated.
var ErrCacheMissing = errors.New("cache not populated, run fetch first")

// Keys of the entries the tool stores.
const (
	KeyActivities = "activities"
	KeyAthlete    = "athlete_info"
)

// StreamsKey returns the key of the cached streams for an activity.
func StreamsKey(activityID int64) string {
	return fmt.Sprintf("activity_%d_streams", activityID)
}

type Cache interface {
	// Get returns the payload stored under key or ErrCacheMissing.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set fully replaces the payload stored under key.
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Updated returns when key was last written, or ErrCacheMissing.
	Updated(ctx context.Context, key string) (time.Time, error)
}

// GetJSON retrieves a JSON payload and unmarshals it into the given value.
func GetJSON(ctx context.Context, c Cache, key string, value any) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, value); err != nil {
		return fmt.Errorf("unmarshaling cached JSON for %q: %w", key, err)
	}
	return nil
}

// SetJSON stores a value as indented JSON.
func SetJSON(ctx context.Context, c Cache, key string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON for cache key %q: %w", key, err)
	}
	return c.Set(ctx, key, data)
}
