package augment

import (
	"fmt"
	"image"

	"github.com/matzehuels/patchaug/pkg/errors"
)

// PatchSize is the width and height of a single patch in pixels.
type PatchSize struct {
	Width  int `json:"width" toml:"width"`
	Height int `json:"height" toml:"height"`
}

// Square returns an n×n patch size.
func Square(n int) PatchSize {
	return PatchSize{Width: n, Height: n}
}

// ParsePatchSize parses "WxH" or "N" into a PatchSize.
func ParsePatchSize(s string) (PatchSize, error) {
	w, h, err := errors.ParsePatchSize(s)
	if err != nil {
		return PatchSize{}, err
	}
	return PatchSize{Width: w, Height: h}, nil
}

// Validate reports an INVALID_CONFIGURATION error if either dimension is not
// positive.
func (p PatchSize) Validate() error {
	return errors.ValidatePatchSize(p.Width, p.Height)
}

// String formats the size as "WxH".
func (p PatchSize) String() string {
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}

// Grid is the row-major arrangement of patches covering a resized image.
type Grid struct {
	Cols  int       `json:"cols"`
	Rows  int       `json:"rows"`
	Patch PatchSize `json:"patch"`
}

// NewGrid computes the patch grid for an image of the given dimensions.
// Dimensions are floor-divided; a remainder strip is not covered.
// The patch size must already be valid.
func NewGrid(width, height int, size PatchSize) Grid {
	return Grid{
		Cols:  width / size.Width,
		Rows:  height / size.Height,
		Patch: size,
	}
}

// Validate rejects grids without any column or row.
func (g Grid) Validate() error {
	return errors.ValidateGrid(g.Cols, g.Rows)
}

// Len returns the number of patches.
func (g Grid) Len() int { return g.Cols * g.Rows }

// Width returns the patch-aligned image width.
func (g Grid) Width() int { return g.Cols * g.Patch.Width }

// Height returns the patch-aligned image height.
func (g Grid) Height() int { return g.Rows * g.Patch.Height }

// Bounds returns the rectangle covered by the grid, anchored at the origin.
func (g Grid) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.Width(), g.Height())
}

// Origin returns the top-left pixel of patch i.
func (g Grid) Origin(i int) image.Point {
	row, col := i/g.Cols, i%g.Cols
	return image.Pt(col*g.Patch.Width, row*g.Patch.Height)
}

// Rect returns the pixel rectangle of patch i.
func (g Grid) Rect(i int) image.Rectangle {
	o := g.Origin(i)
	return image.Rect(o.X, o.Y, o.X+g.Patch.Width, o.Y+g.Patch.Height)
}

// String formats the grid as "colsxrows".
func (g Grid) String() string {
	return fmt.Sprintf("%dx%d", g.Cols, g.Rows)
}
