package transform

import (
	"fmt"
	"image"
	"math"
	"math/rand/v2"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/patchaug/pkg/errors"
)

// GaussianBlur blurs each column with a KernelSize-tap vertical Gaussian
// whose sigma is drawn from U[SigmaMin, SigmaMax]. Rows are not mixed.
type GaussianBlur struct {
	KernelSize int
	SigmaMin   float64
	SigmaMax   float64
}

// maxBlurKernel is the tallest kernel imaging.Convolve5x5 can hold.
const maxBlurKernel = 5

// DefaultGaussianBlur returns a 5-tap kernel with sigma in [0.1, 2.0].
func DefaultGaussianBlur() GaussianBlur {
	return GaussianBlur{KernelSize: 5, SigmaMin: 0.1, SigmaMax: 2.0}
}

// Name implements augment.Transform.
func (GaussianBlur) Name() string { return NameGaussianBlur }

// Validate checks the parameter ranges.
func (g GaussianBlur) Validate() error {
	if g.KernelSize < 1 || g.KernelSize > maxBlurKernel || g.KernelSize%2 == 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration,
			"gaussian_blur: kernel_size must be 1, 3 or 5, got %d", g.KernelSize)
	}
	if g.SigmaMin <= 0 || g.SigmaMax < g.SigmaMin {
		return errors.New(errors.ErrCodeInvalidConfiguration,
			"gaussian_blur: need 0 < sigma_min <= sigma_max, got [%g, %g]", g.SigmaMin, g.SigmaMax)
	}
	return nil
}

// Apply implements augment.Transform.
func (g GaussianBlur) Apply(img *image.NRGBA, rng *rand.Rand) (*image.NRGBA, error) {
	sigma := uniform(rng, g.SigmaMin, g.SigmaMax)
	return imaging.Convolve5x5(img, verticalGaussian(g.KernelSize, sigma), &imaging.ConvolveOptions{Normalize: true}), nil
}

func (g GaussianBlur) String() string {
	return fmt.Sprintf("%s(kernel_size=%d, sigma_min=%g, sigma_max=%g)", NameGaussianBlur, g.KernelSize, g.SigmaMin, g.SigmaMax)
}

// verticalGaussian places size Gaussian weights in the centre column of a
// 5x5 kernel. Weights are left unnormalized; Convolve5x5 divides by the sum.
func verticalGaussian(size int, sigma float64) [25]float64 {
	var k [25]float64
	half := size / 2
	for d := -half; d <= half; d++ {
		x := float64(d) / sigma
		k[(d+2)*5+2] = math.Exp(-0.5 * x * x)
	}
	return k
}

// smoothKernel is the 3x3 smoothing filter sharpness is measured against.
var smoothKernel = [9]float64{
	1, 1, 1,
	1, 5, 1,
	1, 1, 1,
}

// AdjustSharpness blends the patch with a smoothed copy of itself, with
// probability P. Factor 0 yields the smoothed copy, 1 the original, and
// values above 1 sharpen. Border pixels are left untouched.
type AdjustSharpness struct {
	Factor float64
	P      float64
}

// DefaultAdjustSharpness returns factor 2 with probability 0.5.
func DefaultAdjustSharpness() AdjustSharpness {
	return AdjustSharpness{Factor: 2, P: 0.5}
}

// Name implements augment.Transform.
func (AdjustSharpness) Name() string { return NameAdjustSharpness }

// Validate checks the parameter ranges.
func (a AdjustSharpness) Validate() error {
	if a.Factor < 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "adjust_sharpness: factor must not be negative, got %g", a.Factor)
	}
	return validateProbability(NameAdjustSharpness, a.P)
}

// Apply implements augment.Transform.
func (a AdjustSharpness) Apply(img *image.NRGBA, rng *rand.Rand) (*image.NRGBA, error) {
	if rng.Float64() >= a.P {
		return img, nil
	}
	src := imaging.Clone(img)
	b := src.Bounds()
	if b.Dx() < 3 || b.Dy() < 3 {
		return src, nil
	}

	smooth := imaging.Convolve3x3(src, smoothKernel, &imaging.ConvolveOptions{Normalize: true})
	out := imaging.Clone(src)
	for y := 1; y < b.Dy()-1; y++ {
		for x := 1; x < b.Dx()-1; x++ {
			i := src.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				orig, deg := float64(src.Pix[i+c]), float64(smooth.Pix[i+c])
				out.Pix[i+c] = clamp8(deg + a.Factor*(orig-deg))
			}
		}
	}
	return out, nil
}

func (a AdjustSharpness) String() string {
	return fmt.Sprintf("%s(factor=%g, p=%g)", NameAdjustSharpness, a.Factor, a.P)
}
