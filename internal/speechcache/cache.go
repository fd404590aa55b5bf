// Package speechcache is a content-addressed store mapping normalized
// utterance text to transport-ready synthesized audio. It is the only
// resource shared across call sessions; entries are idempotent, so
// concurrent duplicate writes are harmless.
package speechcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Store is a key→audio-bytes cache. Get returns (nil, nil) on a miss;
// implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, audio []byte) error
	Close() error
}

// Normalize produces the canonical cacheable form of an utterance.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Key derives the cache key for an utterance, namespaced by synthesis engine
// so different voices never collide.
func Key(engine, text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return engine + ":audio:" + hex.EncodeToString(sum[:])
}
