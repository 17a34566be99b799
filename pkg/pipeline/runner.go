package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/patchaug/pkg/augment"
	"github.com/matzehuels/patchaug/pkg/cache"
	"github.com/matzehuels/patchaug/pkg/imageio"
	"github.com/matzehuels/patchaug/pkg/observability"
)

const keyTypeArtifact = "artifact"

// Runner executes the pipeline with caching.
//
// A Runner holds no per-run state; multiple goroutines can share one with
// different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner. A nil cache disables caching, a nil keyer
// selects cache.DefaultKeyer and a nil logger selects log.Default.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Keyer: keyer, Logger: logger}
}

// Execute decodes input, augments it and encodes the result.
func (r *Runner) Execute(ctx context.Context, input []byte, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := opts.Logger

	inputHash := cache.Hash(input)
	var cacheKey string
	if opts.Cacheable() && opts.Format != "" {
		cacheKey = r.Keyer.ArtifactKey(inputHash, opts.ArtifactKeyOpts(opts.Format))
		if res, ok := r.lookup(ctx, cacheKey, opts); ok {
			logger.Debug("cache hit", "key", cacheKey)
			return res, nil
		}
	}

	result := &Result{InputHash: inputHash}

	// Stage 1: Decode
	start := time.Now()
	img, inFormat, err := imageio.DecodeBytes(input)
	result.Stats.DecodeTime = time.Since(start)
	if err != nil {
		observability.Pipeline().OnDecodeComplete(ctx, "", 0, 0, result.Stats.DecodeTime, err)
		return nil, fmt.Errorf("decode: %w", err)
	}
	b := img.Bounds()
	result.Stats.Width, result.Stats.Height = b.Dx(), b.Dy()
	observability.Pipeline().OnDecodeComplete(ctx, inFormat, b.Dx(), b.Dy(), result.Stats.DecodeTime, nil)

	outFormat, err := imageio.OutputFormat(opts.Format, inFormat)
	if err != nil {
		return nil, err
	}
	result.Format = outFormat

	// The output format is known only after decoding when none was requested.
	if opts.Cacheable() && cacheKey == "" {
		cacheKey = r.Keyer.ArtifactKey(inputHash, opts.ArtifactKeyOpts(outFormat))
		if res, ok := r.lookup(ctx, cacheKey, opts); ok {
			logger.Debug("cache hit", "key", cacheKey)
			return res, nil
		}
	}

	logger.Debug("decoded image", "format", inFormat, "width", b.Dx(), "height", b.Dy(), "duration", result.Stats.DecodeTime)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 2: Augment
	start = time.Now()
	out, trace, err := r.AugmentImage(ctx, img, opts)
	if err != nil {
		return nil, fmt.Errorf("augment: %w", err)
	}
	result.Stats.AugmentTime = time.Since(start)
	grid := augment.NewGrid(b.Dx(), b.Dy(), opts.PatchSize)
	result.Stats.ResizedWidth, result.Stats.ResizedHeight = grid.Width(), grid.Height()
	result.Stats.Cols, result.Stats.Rows, result.Stats.Patches = grid.Cols, grid.Rows, grid.Len()
	if opts.Trace {
		result.Trace = trace
	}

	logger.Info("augmented image",
		"grid", grid,
		"patches", grid.Len(),
		"n", opts.NumTransformations,
		"duration", result.Stats.AugmentTime)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 3: Encode
	start = time.Now()
	data, err := imageio.EncodeBytes(out, outFormat, opts.Quality)
	result.Stats.EncodeTime = time.Since(start)
	observability.Pipeline().OnEncodeComplete(ctx, outFormat, len(data), result.Stats.EncodeTime, err)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	result.Image = data
	result.Stats.OutputBytes = len(data)

	logger.Debug("encoded image", "format", outFormat, "bytes", len(data), "duration", result.Stats.EncodeTime)

	if cacheKey != "" {
		r.store(ctx, cacheKey, result)
	}
	return result, nil
}

// AugmentImage runs only the in-memory augmentation. The trace is always
// recorded; callers discard it when not needed.
func (r *Runner) AugmentImage(ctx context.Context, img image.Image, opts Options) (*image.NRGBA, *augment.Trace, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, nil, err
	}
	a, err := augment.New(opts.PatchSize, opts.Transforms, opts.NumTransformations)
	if err != nil {
		return nil, nil, err
	}

	var grid augment.Grid
	if img != nil {
		grid = augment.NewGrid(img.Bounds().Dx(), img.Bounds().Dy(), opts.PatchSize)
	}
	observability.Pipeline().OnAugmentStart(ctx, grid.String(), grid.Len())
	start := time.Now()
	out, trace, err := a.AugmentWithTrace(img, opts.Rand())
	observability.Pipeline().OnAugmentComplete(ctx, grid.String(), time.Since(start), err)
	if err != nil {
		return nil, nil, err
	}
	return out, trace, nil
}

// Close releases the cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) lookup(ctx context.Context, key string, opts Options) (*Result, bool) {
	if opts.Refresh {
		return nil, false
	}
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		opts.Logger.Warn("cache read failed", "err", err)
	}
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, keyTypeArtifact)
		return nil, false
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		observability.Cache().OnCacheMiss(ctx, keyTypeArtifact)
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, keyTypeArtifact)
	res.CacheHit = true
	return &res, true
}

func (r *Runner) store(ctx context.Context, key string, res *Result) {
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := r.Cache.Set(ctx, key, data, cache.TTLArtifact); err != nil {
		r.Logger.Warn("cache write failed", "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, keyTypeArtifact, len(data))
}

func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
