package augment

import (
	"image"
	"math/rand/v2"

	"github.com/matzehuels/patchaug/pkg/errors"
)

// Transform maps one patch to a new patch of the same dimensions.
//
// Apply may draw random parameters from rng and may reuse img as its output,
// since every patch handed to a Transform is an owned copy. Returning a patch
// with different bounds is a contract violation reported by [ApplyAll].
type Transform interface {
	Name() string
	Apply(img *image.NRGBA, rng *rand.Rand) (*image.NRGBA, error)
}

// Func adapts a plain function to the Transform interface.
func Func(name string, fn func(img *image.NRGBA, rng *rand.Rand) (*image.NRGBA, error)) Transform {
	return funcTransform{name: name, fn: fn}
}

type funcTransform struct {
	name string
	fn   func(*image.NRGBA, *rand.Rand) (*image.NRGBA, error)
}

func (f funcTransform) Name() string { return f.name }

func (f funcTransform) Apply(img *image.NRGBA, rng *rand.Rand) (*image.NRGBA, error) {
	return f.fn(img, rng)
}

// Compose samples n distinct transformations from set uniformly without
// replacement and returns them in a uniformly random order.
// It panics if n is outside [0, len(set)]; callers validate first.
func Compose(set []Transform, n int, rng *rand.Rand) []Transform {
	if n == 0 {
		return nil
	}
	picked := make([]Transform, n)
	for i, idx := range rng.Perm(len(set))[:n] {
		picked[i] = set[idx]
	}
	// The Perm prefix is already in random order. The shuffle keeps the
	// sample-then-shuffle draw sequence that seeded outputs depend on.
	rng.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})
	return picked
}

// ApplyAll runs the composition over patch in order, each transformation
// consuming the previous one's output. Errors from a transformation are
// returned unchanged.
func ApplyAll(patch *image.NRGBA, composition []Transform, rng *rand.Rand) (*image.NRGBA, error) {
	want := patch.Bounds().Size()
	for _, t := range composition {
		out, err := t.Apply(patch, rng)
		if err != nil {
			return nil, err
		}
		if out == nil {
			return nil, errors.New(errors.ErrCodeInternal, "transform %q returned no image", t.Name())
		}
		if got := out.Bounds().Size(); got != want {
			return nil, errors.New(errors.ErrCodeInternal,
				"transform %q changed patch size from %dx%d to %dx%d", t.Name(), want.X, want.Y, got.X, got.Y)
		}
		patch = out
	}
	return patch, nil
}

// Names returns the names of the given transformations in order.
func Names(ts []Transform) []string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.Name()
	}
	return names
}
