package augment

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math/rand/v2"
	"slices"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/patchaug/pkg/errors"
)

// Augmentor applies per-patch random transformation compositions.
// It holds only immutable configuration and is safe for concurrent use
// provided each call supplies its own *rand.Rand.
type Augmentor struct {
	size       PatchSize
	transforms []Transform
	n          int
}

// New validates the configuration and returns an Augmentor.
// n is the number of transformations applied to every patch and must lie in
// [0, len(set)].
func New(size PatchSize, set []Transform, n int) (*Augmentor, error) {
	if err := size.Validate(); err != nil {
		return nil, err
	}
	if err := errors.ValidateTransformCount(n, len(set)); err != nil {
		return nil, err
	}
	for i, t := range set {
		if t == nil {
			return nil, errors.New(errors.ErrCodeInvalidConfiguration, "transformation %d is nil", i)
		}
	}
	return &Augmentor{
		size:       size,
		transforms: slices.Clone(set),
		n:          n,
	}, nil
}

// Augment is the functional form of New followed by Augmentor.Augment.
func Augment(img image.Image, size PatchSize, set []Transform, n int, rng *rand.Rand) (*image.NRGBA, error) {
	a, err := New(size, set, n)
	if err != nil {
		return nil, err
	}
	return a.Augment(img, rng)
}

// PatchSize returns the configured patch size.
func (a *Augmentor) PatchSize() PatchSize { return a.size }

// NumTransformations returns how many transformations each patch receives.
func (a *Augmentor) NumTransformations() int { return a.n }

// Transforms returns a copy of the configured transformation set.
func (a *Augmentor) Transforms() []Transform { return slices.Clone(a.transforms) }

// String describes the augmentor, e.g. "patch augmentation(16x16, n=3)".
func (a *Augmentor) String() string {
	return fmt.Sprintf("patch augmentation(%s, n=%d)", a.size, a.n)
}

// Augment resizes img to the patch grid, transforms each patch independently
// and returns the reassembled image. img is never modified. A nil rng uses a
// freshly seeded generator for this call.
func (a *Augmentor) Augment(img image.Image, rng *rand.Rand) (*image.NRGBA, error) {
	out, _, err := a.run(img, rng, false)
	return out, err
}

// Trace records which transformations were applied to which patch.
type Trace struct {
	Grid Grid `json:"grid"`
	// Patches[i] lists the transformation names applied to patch i, in order.
	Patches [][]string `json:"patches"`
}

// AugmentWithTrace behaves like Augment and additionally reports the
// composition chosen for every patch.
func (a *Augmentor) AugmentWithTrace(img image.Image, rng *rand.Rand) (*image.NRGBA, *Trace, error) {
	return a.run(img, rng, true)
}

func (a *Augmentor) run(img image.Image, rng *rand.Rand, trace bool) (*image.NRGBA, *Trace, error) {
	resized, grid, err := Resize(img, a.size)
	if err != nil {
		return nil, nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	var tr *Trace
	if trace {
		tr = &Trace{Grid: grid, Patches: make([][]string, 0, grid.Len())}
	}

	patches := Partition(resized, grid)
	for i, p := range patches {
		composition := Compose(a.transforms, a.n, rng)
		out, err := ApplyAll(p, composition, rng)
		if err != nil {
			return nil, nil, err
		}
		patches[i] = out
		if tr != nil {
			tr.Patches = append(tr.Patches, Names(composition))
		}
	}

	out, err := Reassemble(patches, grid)
	if err != nil {
		return nil, nil, err
	}
	return out, tr, nil
}

// Resize scales img down to the largest patch-aligned size not exceeding its
// own and returns the result together with the patch grid. An image whose
// dimensions are already multiples of the patch size is copied, not
// resampled. Images smaller than one patch along either axis are rejected.
func Resize(img image.Image, size PatchSize) (*image.NRGBA, Grid, error) {
	if err := size.Validate(); err != nil {
		return nil, Grid{}, err
	}
	if img == nil {
		return nil, Grid{}, errors.New(errors.ErrCodeInvalidInput, "image is nil")
	}

	b := img.Bounds()
	grid := NewGrid(b.Dx(), b.Dy(), size)
	if err := grid.Validate(); err != nil {
		return nil, Grid{}, err
	}

	if grid.Width() == b.Dx() && grid.Height() == b.Dy() {
		return imaging.Clone(img), grid, nil
	}
	return imaging.Resize(img, grid.Width(), grid.Height(), imaging.Lanczos), grid, nil
}

// Partition crops img into grid.Len() patches in row-major order. Every
// patch is an independent copy with bounds anchored at the origin.
func Partition(img image.Image, grid Grid) []*image.NRGBA {
	origin := img.Bounds().Min
	patches := make([]*image.NRGBA, grid.Len())
	for i := range patches {
		patches[i] = imaging.Crop(img, grid.Rect(i).Add(origin))
	}
	return patches
}

// Reassemble pastes patches onto a fresh black canvas of the grid's size.
// Patch i lands at grid.Origin(i), the inverse of Partition's indexing.
func Reassemble(patches []*image.NRGBA, grid Grid) (*image.NRGBA, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if len(patches) != grid.Len() {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration,
			"grid %s needs %d patches, got %d", grid, grid.Len(), len(patches))
	}

	want := image.Pt(grid.Patch.Width, grid.Patch.Height)
	canvas := imaging.New(grid.Width(), grid.Height(), color.NRGBA{A: 0xff})
	for i, p := range patches {
		if p == nil || p.Bounds().Size() != want {
			return nil, errors.New(errors.ErrCodeInvalidConfiguration,
				"patch %d does not match patch size %s", i, grid.Patch)
		}
		draw.Draw(canvas, grid.Rect(i), p, p.Bounds().Min, draw.Src)
	}
	return canvas, nil
}
