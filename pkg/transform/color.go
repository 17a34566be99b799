package transform

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand/v2"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/matzehuels/patchaug/pkg/errors"
)

// ColorJitter randomly scales brightness and rotates hue.
//
// The brightness factor is drawn from U[max(0, 1-Brightness), 1+Brightness]
// and multiplies every channel. The hue shift is drawn from U[-Hue, Hue]
// turns and rotates the HSV hue. The two adjustments run in random order.
// A zero parameter disables that adjustment.
type ColorJitter struct {
	Brightness float64
	Hue        float64
}

// DefaultColorJitter returns brightness 0.1, hue 0.1.
func DefaultColorJitter() ColorJitter {
	return ColorJitter{Brightness: 0.1, Hue: 0.1}
}

// Name implements augment.Transform.
func (ColorJitter) Name() string { return NameColorJitter }

// Validate checks the parameter ranges.
func (c ColorJitter) Validate() error {
	if c.Brightness < 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "color_jitter: brightness must not be negative, got %g", c.Brightness)
	}
	if c.Hue < 0 || c.Hue > 0.5 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "color_jitter: hue must be in [0, 0.5], got %g", c.Hue)
	}
	return nil
}

// Apply implements augment.Transform.
func (c ColorJitter) Apply(img *image.NRGBA, rng *rand.Rand) (*image.NRGBA, error) {
	var ops []func(*image.NRGBA) *image.NRGBA
	if c.Brightness > 0 {
		factor := uniform(rng, max(0, 1-c.Brightness), 1+c.Brightness)
		ops = append(ops, func(im *image.NRGBA) *image.NRGBA { return scaleBrightness(im, factor) })
	}
	if c.Hue > 0 {
		shift := uniform(rng, -c.Hue, c.Hue)
		ops = append(ops, func(im *image.NRGBA) *image.NRGBA { return rotateHue(im, shift) })
	}
	rng.Shuffle(len(ops), func(i, j int) { ops[i], ops[j] = ops[j], ops[i] })

	for _, op := range ops {
		img = op(img)
	}
	return img, nil
}

func (c ColorJitter) String() string {
	return fmt.Sprintf("%s(brightness=%g, hue=%g)", NameColorJitter, c.Brightness, c.Hue)
}

func scaleBrightness(img *image.NRGBA, factor float64) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: clamp8(float64(c.R) * factor),
			G: clamp8(float64(c.G) * factor),
			B: clamp8(float64(c.B) * factor),
			A: c.A,
		}
	})
}

// rotateHue shifts the HSV hue by shift turns.
func rotateHue(img *image.NRGBA, shift float64) *image.NRGBA {
	deg := shift * 360
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		col := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
		h, s, v := col.Hsv()
		if s == 0 {
			return c
		}
		h = math.Mod(h+deg+360, 360)
		r, g, b := colorful.Hsv(h, s, v).Clamped().RGB255()
		return color.NRGBA{R: r, G: g, B: b, A: c.A}
	})
}

// Posterize keeps only the top Bits bits of each color channel, with
// probability P.
type Posterize struct {
	Bits int
	P    float64
}

// DefaultPosterize returns 3 bits with probability 0.5.
func DefaultPosterize() Posterize {
	return Posterize{Bits: 3, P: 0.5}
}

// Name implements augment.Transform.
func (Posterize) Name() string { return NamePosterize }

// Validate checks the parameter ranges.
func (p Posterize) Validate() error {
	if p.Bits < 0 || p.Bits > 8 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "posterize: bits must be in [0, 8], got %d", p.Bits)
	}
	return validateProbability(NamePosterize, p.P)
}

// Apply implements augment.Transform.
func (p Posterize) Apply(img *image.NRGBA, rng *rand.Rand) (*image.NRGBA, error) {
	if rng.Float64() >= p.P {
		return img, nil
	}
	mask := ^uint8(0) << (8 - p.Bits)
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: c.R & mask, G: c.G & mask, B: c.B & mask, A: c.A}
	}), nil
}

func (p Posterize) String() string {
	return fmt.Sprintf("%s(bits=%d, p=%g)", NamePosterize, p.Bits, p.P)
}

func validateProbability(name string, p float64) error {
	if p < 0 || p > 1 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "%s: p must be in [0, 1], got %g", name, p)
	}
	return nil
}
