package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Cache defines the interface for caching model replies
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// CompletionKey derives a cache key from everything that determines a reply
func CompletionKey(provider, model string, temperature float64, system, prompt string) string {
	h := sha256.New()
	for _, part := range []string{provider, model, strconv.FormatFloat(temperature, 'f', -1, 64), system, prompt} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return "sitclass:v1:" + hex.EncodeToString(h.Sum(nil))
}
