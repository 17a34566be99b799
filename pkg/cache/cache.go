// Package cache stores encoded augmentation results.
//
// A [Cache] is a byte-oriented key/value store with per-entry TTL. Three
// back ends are provided:
//
//   - [NullCache] never stores anything (caching disabled)
//   - [FileCache] keeps entries on disk for CLI usage
//   - [RedisCache] shares entries between service replicas
//
// Keys are derived with a [Keyer] from the hash of the input image and every
// option that influences the output, so two requests share an entry only if
// they would produce identical bytes. Only seeded runs are deterministic and
// therefore cacheable; callers are expected to skip the cache otherwise.
package cache

import (
	"context"
	"time"
)

// Default time-to-live values.
const (
	// TTLArtifact applies to augmented images.
	TTLArtifact = 7 * 24 * time.Hour
)

// Cache is a byte-oriented key/value store.
//
// Get reports a miss with ok == false and a nil error. Implementations must
// be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// ArtifactKeyOpts lists everything besides the input that determines an
// augmented image.
type ArtifactKeyOpts struct {
	PatchSize  string   `json:"patch_size"`
	Count      int      `json:"n"`
	Transforms []string `json:"transforms"`
	Seed       uint64   `json:"seed"`
	Format     string   `json:"format"`
	Quality    int      `json:"quality,omitempty"`
	Trace      bool     `json:"trace,omitempty"`
}

// Keyer derives cache keys.
type Keyer interface {
	// ArtifactKey returns the key for the augmentation of the input with the
	// given content hash.
	ArtifactKey(inputHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer produces unprefixed keys of the form "artifact:<sha256>".
type DefaultKeyer struct{}

// NewDefaultKeyer returns a DefaultKeyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ArtifactKey implements Keyer.
func (DefaultKeyer) ArtifactKey(inputHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", inputHash, opts)
}
