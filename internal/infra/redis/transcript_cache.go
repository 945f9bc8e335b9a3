package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"ielts-practice-engine/internal/transcript"
)

// TranscriptCache keeps raw caption-track text keyed by a hash of its URL.
type TranscriptCache struct {
	client *redis.Client
	source transcript.Source
	ttl    time.Duration
	sf     singleflight.Group
}

func NewTranscriptCache(client *redis.Client, source transcript.Source, ttl time.Duration) *TranscriptCache {
	return &TranscriptCache{client: client, source: source, ttl: ttl}
}

func (c *TranscriptCache) GetTranscript(ctx context.Context, url string) (string, error) {
	key := c.key(url)
	raw, err := c.client.Get(ctx, key).Result()
	if err == nil {
		return raw, nil
	}
	if !errors.Is(err, redis.Nil) {
		log.Printf("read cached transcript: %v", err)
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		raw, err := c.source.GetTranscript(ctx, url)
		if err != nil {
			return "", err
		}
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			log.Printf("cache transcript: %v", err)
		}
		return raw, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *TranscriptCache) key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "transcript:" + hex.EncodeToString(sum[:])
}
