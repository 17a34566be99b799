// Package pipeline runs decode → augment → encode for CLI and API callers.
//
// Centralizing the pipeline keeps defaults, validation, caching and
// observability identical across entry points.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.DefaultOptions()
//	opts.Seed = pipeline.Seed(42)
//	result, err := runner.Execute(ctx, input, opts)
//	if err != nil {
//	    return err
//	}
//	os.WriteFile("out.png", result.Image, 0o644)
//
// # Caching
//
// Only seeded runs are reproducible, so only seeded runs are read from or
// written to the cache. The key covers the input bytes and every option
// that influences the output.
package pipeline

import (
	"io"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/patchaug/pkg/augment"
	"github.com/matzehuels/patchaug/pkg/cache"
	"github.com/matzehuels/patchaug/pkg/errors"
	"github.com/matzehuels/patchaug/pkg/imageio"
	"github.com/matzehuels/patchaug/pkg/transform"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultPatchSize is the side length of the default square patch.
	DefaultPatchSize = 16

	// DefaultNumTransformations is how many transformations each patch
	// receives by default.
	DefaultNumTransformations = 3
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options configures one pipeline run. It supports JSON for API requests.
//
// A zero NumTransformations is valid and leaves every patch untouched; use
// DefaultOptions for the standard configuration.
type Options struct {
	PatchSize          augment.PatchSize `json:"patch_size"`
	NumTransformations int               `json:"n"`

	// TransformNames selects default-configured transformations by name.
	// Ignored when Transforms is set; both empty selects transform.Default.
	TransformNames []string `json:"transforms,omitempty"`

	// Seed makes the run reproducible and cacheable. nil draws fresh
	// entropy.
	Seed *uint64 `json:"seed,omitempty"`

	// Format is the output format. Empty keeps the input format, or PNG if
	// the input format cannot be encoded.
	Format  string `json:"format,omitempty"`
	Quality int    `json:"quality,omitempty"`

	// Trace records the composition applied to every patch.
	Trace bool `json:"trace,omitempty"`

	// Refresh bypasses cache reads; the result is still stored.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Transforms []augment.Transform `json:"-"`
	Logger     *log.Logger         `json:"-"`

	validated bool
}

// DefaultOptions returns 16x16 patches, three transformations per patch and
// the default transformation set.
func DefaultOptions() Options {
	return Options{
		PatchSize:          augment.Square(DefaultPatchSize),
		NumTransformations: DefaultNumTransformations,
	}
}

// Seed returns a pointer to seed, for Options.Seed.
func Seed(seed uint64) *uint64 {
	return &seed
}

// Result is the outcome of a pipeline run.
type Result struct {
	// Image is the encoded augmented image.
	Image []byte `json:"image"`

	// Format is the encoding of Image.
	Format string `json:"format"`

	// InputHash is the SHA-256 of the input bytes.
	InputHash string `json:"input_hash"`

	Stats Stats `json:"stats"`

	// Trace is set when Options.Trace was requested.
	Trace *augment.Trace `json:"trace,omitempty"`

	// CacheHit reports whether Image came from the cache.
	CacheHit bool `json:"-"`
}

// Stats contains execution statistics.
type Stats struct {
	Width         int           `json:"width"`
	Height        int           `json:"height"`
	ResizedWidth  int           `json:"resized_width"`
	ResizedHeight int           `json:"resized_height"`
	Cols          int           `json:"cols"`
	Rows          int           `json:"rows"`
	Patches       int           `json:"patches"`
	OutputBytes   int           `json:"output_bytes"`
	DecodeTime    time.Duration `json:"decode_time"`
	AugmentTime   time.Duration `json:"augment_time"`
	EncodeTime    time.Duration `json:"encode_time"`
}

// Total returns the summed stage durations.
func (s Stats) Total() time.Duration {
	return s.DecodeTime + s.AugmentTime + s.EncodeTime
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults resolves the transformation set, applies defaults
// and validates every field. It is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.PatchSize == (augment.PatchSize{}) {
		o.PatchSize = augment.Square(DefaultPatchSize)
	}
	if err := o.PatchSize.Validate(); err != nil {
		return err
	}

	if len(o.Transforms) == 0 {
		if len(o.TransformNames) > 0 {
			set, err := transform.Parse(strings.Join(o.TransformNames, ","))
			if err != nil {
				return err
			}
			o.Transforms = set
		} else {
			o.Transforms = transform.Default()
		}
	}
	if err := errors.ValidateTransformCount(o.NumTransformations, len(o.Transforms)); err != nil {
		return err
	}

	if o.Format != "" {
		f, err := imageio.ValidateFormat(o.Format)
		if err != nil {
			return err
		}
		o.Format = f
	}
	if o.Quality == 0 {
		o.Quality = imageio.DefaultQuality
	}
	if o.Quality < 1 || o.Quality > 100 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "quality must be in [1, 100], got %d", o.Quality)
	}

	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// Cacheable reports whether the run is deterministic and its cache key
// identifies every transformation. Custom transformations are keyed by name
// only, so runs using them are never cached.
func (o *Options) Cacheable() bool {
	if o.Seed == nil {
		return false
	}
	for _, t := range o.Transforms {
		if !transform.Builtin(t) {
			return false
		}
	}
	return true
}

// Rand returns the generator for the run: PCG seeded from Seed, or nil to
// let the augmentor draw fresh entropy.
func (o *Options) Rand() *rand.Rand {
	if o.Seed == nil {
		return nil
	}
	s := *o.Seed
	return rand.New(rand.NewPCG(s, s^0xdeadbeef))
}

// ArtifactKeyOpts returns cache key options for an output in format.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	descs := make([]string, len(o.Transforms))
	for i, t := range o.Transforms {
		descs[i] = transform.Describe(t)
	}
	var seed uint64
	if o.Seed != nil {
		seed = *o.Seed
	}
	quality := 0
	if format == imageio.FormatJPEG {
		quality = o.Quality
	}
	return cache.ArtifactKeyOpts{
		PatchSize:  o.PatchSize.String(),
		Count:      o.NumTransformations,
		Transforms: descs,
		Seed:       seed,
		Format:     format,
		Quality:    quality,
		Trace:      o.Trace,
	}
}
