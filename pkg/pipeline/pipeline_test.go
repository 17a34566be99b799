package pipeline

import (
	"bytes"
	"context"
	stderrors "errors"
	"image"
	"image/color"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/patchaug/pkg/augment"
	"github.com/matzehuels/patchaug/pkg/cache"
	"github.com/matzehuels/patchaug/pkg/errors"
	"github.com/matzehuels/patchaug/pkg/imageio"
	"github.com/matzehuels/patchaug/pkg/observability"
	"github.com/matzehuels/patchaug/pkg/transform"
)

func pngInput(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 2), G: uint8(y * 2), B: uint8(x + y), A: 0xff})
		}
	}
	data, err := imageio.EncodeBytes(img, imageio.FormatPNG, 0)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// memCache is an in-memory Cache that counts reads and writes.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
	sets int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	d, ok := c.data[key]
	return d, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data[key] = data
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) Close() error { return nil }

func TestValidateAndSetDefaults(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		wantErr  errors.Code
		wantSet  []string
		wantSize augment.PatchSize
	}{
		{
			name:     "zero value",
			opts:     Options{},
			wantSet:  augment.Names(transform.Default()),
			wantSize: augment.Square(16),
		},
		{
			name:     "names",
			opts:     Options{PatchSize: augment.PatchSize{Width: 8, Height: 4}, NumTransformations: 1, TransformNames: []string{"posterize", "identity"}},
			wantSet:  []string{"posterize", "identity"},
			wantSize: augment.PatchSize{Width: 8, Height: 4},
		},
		{
			name:     "explicit set wins",
			opts:     Options{NumTransformations: 1, Transforms: []augment.Transform{transform.Identity{}}, TransformNames: []string{"posterize"}},
			wantSet:  []string{"identity"},
			wantSize: augment.Square(16),
		},
		{name: "count too large", opts: Options{NumTransformations: 5}, wantErr: errors.ErrCodeInvalidConfiguration},
		{name: "negative count", opts: Options{NumTransformations: -1}, wantErr: errors.ErrCodeInvalidConfiguration},
		{name: "negative patch", opts: Options{PatchSize: augment.PatchSize{Width: -1, Height: 4}}, wantErr: errors.ErrCodeInvalidConfiguration},
		{name: "unknown transform", opts: Options{TransformNames: []string{"warp"}}, wantErr: errors.ErrCodeInvalidConfiguration},
		{name: "bad format", opts: Options{Format: "svg"}, wantErr: errors.ErrCodeInvalidFormat},
		{name: "bad quality", opts: Options{Quality: 101}, wantErr: errors.ErrCodeInvalidConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			err := opts.ValidateAndSetDefaults()
			if tt.wantErr != "" {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := augment.Names(opts.Transforms)
			if len(got) != len(tt.wantSet) {
				t.Fatalf("transforms = %v, want %v", got, tt.wantSet)
			}
			for i := range got {
				if got[i] != tt.wantSet[i] {
					t.Errorf("transforms = %v, want %v", got, tt.wantSet)
				}
			}
			if opts.PatchSize != tt.wantSize {
				t.Errorf("patch size = %v, want %v", opts.PatchSize, tt.wantSize)
			}
			if opts.Quality != imageio.DefaultQuality || opts.Logger == nil {
				t.Error("defaults not applied")
			}
		})
	}
}

func TestExecute(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	opts := DefaultOptions()
	opts.Seed = Seed(7)

	res, err := r.Execute(context.Background(), pngInput(t, 100, 100), opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Format != imageio.FormatPNG || res.CacheHit {
		t.Errorf("format = %q, hit = %v", res.Format, res.CacheHit)
	}
	s := res.Stats
	if s.Width != 100 || s.ResizedWidth != 96 || s.ResizedHeight != 96 || s.Patches != 36 || s.Cols != 6 || s.Rows != 6 {
		t.Errorf("stats = %+v", s)
	}
	if s.OutputBytes != len(res.Image) {
		t.Errorf("OutputBytes = %d, len = %d", s.OutputBytes, len(res.Image))
	}
	if res.Trace != nil {
		t.Error("trace should be omitted unless requested")
	}

	out, _, err := imageio.DecodeBytes(res.Image)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if out.Bounds().Size() != image.Pt(96, 96) {
		t.Errorf("output size = %v", out.Bounds().Size())
	}
}

func TestExecuteDeterministic(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	input := pngInput(t, 64, 48)
	opts := DefaultOptions()
	opts.Seed = Seed(99)

	a, err := r.Execute(context.Background(), input, opts)
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Execute(context.Background(), input, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Image, b.Image) {
		t.Error("same seed should produce identical output")
	}
}

func TestExecuteIdentityRoundTrip(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	input := pngInput(t, 32, 32)
	opts := Options{PatchSize: augment.Square(8), NumTransformations: 0, Seed: Seed(1)}

	res, err := r.Execute(context.Background(), input, opts)
	if err != nil {
		t.Fatal(err)
	}
	want, _, _ := imageio.DecodeBytes(input)
	got, _, _ := imageio.DecodeBytes(res.Image)
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			if got.At(x, y) != want.At(x, y) {
				t.Fatalf("pixel (%d,%d) changed with no transformations", x, y)
			}
		}
	}
}

func TestExecuteTraceAndFormat(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	opts := DefaultOptions()
	opts.Seed = Seed(3)
	opts.Trace = true
	opts.Format = "jpg"

	res, err := r.Execute(context.Background(), pngInput(t, 48, 32), opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.Format != imageio.FormatJPEG {
		t.Errorf("format = %q", res.Format)
	}
	if res.Trace == nil || len(res.Trace.Patches) != 6 {
		t.Fatalf("trace = %+v", res.Trace)
	}
	for i, p := range res.Trace.Patches {
		if len(p) != DefaultNumTransformations {
			t.Errorf("patch %d composition = %v", i, p)
		}
	}
}

func TestExecuteCaching(t *testing.T) {
	c := newMemCache()
	r := NewRunner(c, nil, nil)
	input := pngInput(t, 32, 32)
	ctx := context.Background()

	opts := DefaultOptions()
	opts.Seed = Seed(5)

	first, err := r.Execute(ctx, input, opts)
	if err != nil || first.CacheHit {
		t.Fatalf("first run: hit=%v err=%v", first != nil && first.CacheHit, err)
	}
	second, err := r.Execute(ctx, input, opts)
	if err != nil || !second.CacheHit {
		t.Fatalf("second run should hit the cache, err=%v", err)
	}
	if !bytes.Equal(first.Image, second.Image) || second.Stats.Patches != first.Stats.Patches {
		t.Error("cached result differs from original")
	}

	opts.Refresh = true
	third, err := r.Execute(ctx, input, opts)
	if err != nil || third.CacheHit {
		t.Errorf("refresh should bypass the cache, hit=%v err=%v", third != nil && third.CacheHit, err)
	}

	other := DefaultOptions()
	other.Seed = Seed(6)
	fourth, _ := r.Execute(ctx, input, other)
	if fourth.CacheHit {
		t.Error("different seed must not share a cache entry")
	}
}

func TestExecuteUnseededSkipsCache(t *testing.T) {
	c := newMemCache()
	r := NewRunner(c, nil, nil)
	if _, err := r.Execute(context.Background(), pngInput(t, 32, 32), DefaultOptions()); err != nil {
		t.Fatal(err)
	}
	if c.gets != 0 || c.sets != 0 {
		t.Errorf("unseeded run touched the cache: gets=%d sets=%d", c.gets, c.sets)
	}
}

func TestExecuteCustomTransformSkipsCache(t *testing.T) {
	c := newMemCache()
	r := NewRunner(c, nil, nil)
	input := pngInput(t, 32, 32)

	custom := func(v uint8) augment.Transform {
		return augment.Func("fill", func(img *image.NRGBA, _ *rand.Rand) (*image.NRGBA, error) {
			for i := 0; i < len(img.Pix); i += 4 {
				img.Pix[i] = v
			}
			return img, nil
		})
	}

	var outputs [][]byte
	for _, v := range []uint8{0x10, 0xf0} {
		opts := DefaultOptions()
		opts.Seed = Seed(5)
		opts.Transforms = []augment.Transform{custom(v)}
		opts.NumTransformations = 1
		if opts.Cacheable() {
			t.Fatal("options with a custom transformation should not be cacheable")
		}
		res, err := r.Execute(context.Background(), input, opts)
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if res.CacheHit {
			t.Error("custom transformation hit the cache")
		}
		outputs = append(outputs, res.Image)
	}
	if bytes.Equal(outputs[0], outputs[1]) {
		t.Error("same-named custom transformations returned the same image")
	}
	if c.gets != 0 || c.sets != 0 {
		t.Errorf("custom transformation touched the cache: gets=%d sets=%d", c.gets, c.sets)
	}
}

func TestExecuteErrors(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	ctx := context.Background()

	if _, err := r.Execute(ctx, []byte("garbage"), DefaultOptions()); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("garbage input err = %v, want INVALID_INPUT", err)
	}

	small := DefaultOptions()
	small.PatchSize = augment.Square(64)
	if _, err := r.Execute(ctx, pngInput(t, 32, 32), small); !errors.Is(err, errors.ErrCodeInvalidConfiguration) {
		t.Errorf("patch larger than image err = %v, want INVALID_CONFIGURATION", err)
	}

	bad := DefaultOptions()
	bad.NumTransformations = 9
	if _, err := r.Execute(ctx, pngInput(t, 32, 32), bad); !errors.Is(err, errors.ErrCodeInvalidConfiguration) {
		t.Errorf("count out of range err = %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := r.Execute(cancelled, pngInput(t, 32, 32), DefaultOptions()); !stderrors.Is(err, context.Canceled) {
		t.Errorf("cancelled context err = %v", err)
	}
}

type recordingHooks struct {
	observability.NoopPipelineHooks
	mu     sync.Mutex
	events []string
}

func (h *recordingHooks) record(e string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
}

func (h *recordingHooks) OnDecodeComplete(context.Context, string, int, int, time.Duration, error) {
	h.record("decode")
}

func (h *recordingHooks) OnAugmentStart(_ context.Context, grid string, _ int) {
	h.record("augment:" + grid)
}

func (h *recordingHooks) OnEncodeComplete(context.Context, string, int, time.Duration, error) {
	h.record("encode")
}

func TestExecuteEmitsHooks(t *testing.T) {
	observability.Reset()
	defer observability.Reset()
	h := &recordingHooks{}
	observability.SetPipelineHooks(h)

	opts := DefaultOptions()
	if _, err := NewRunner(nil, nil, nil).Execute(context.Background(), pngInput(t, 32, 16), opts); err != nil {
		t.Fatal(err)
	}
	want := []string{"decode", "augment:2x1", "encode"}
	if len(h.events) != len(want) {
		t.Fatalf("events = %v, want %v", h.events, want)
	}
	for i := range want {
		if h.events[i] != want[i] {
			t.Errorf("events = %v, want %v", h.events, want)
		}
	}
}

func TestArtifactKeyOpts(t *testing.T) {
	opts := DefaultOptions()
	opts.Seed = Seed(4)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	png := opts.ArtifactKeyOpts(imageio.FormatPNG)
	if png.Quality != 0 || png.Seed != 4 || png.PatchSize != "16x16" || len(png.Transforms) != 4 {
		t.Errorf("png key opts = %+v", png)
	}
	if jpeg := opts.ArtifactKeyOpts(imageio.FormatJPEG); jpeg.Quality != imageio.DefaultQuality {
		t.Errorf("jpeg quality = %d", jpeg.Quality)
	}
}

func TestRunnerDefaults(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	if r.Cache == nil || r.Keyer == nil || r.Logger == nil {
		t.Error("NewRunner should fill nil dependencies")
	}
	if _, ok := r.Cache.(cache.NullCache); !ok {
		t.Errorf("default cache = %T, want NullCache", r.Cache)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
