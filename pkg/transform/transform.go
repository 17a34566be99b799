// Package transform provides the built-in patch transformations.
//
// Every transformation implements augment.Transform, preserves the patch
// dimensions and draws its random parameters from the generator passed to
// Apply. The default set mirrors the one used for self-supervised
// pre-training:
//
//   - color_jitter: brightness ±10%, hue ±0.1 turn
//   - gaussian_blur: sigma in [0.1, 2.0]
//   - adjust_sharpness: factor 2 with probability 0.5
//   - posterize: 3 bits with probability 0.5
//
// Transformations can also be built by name from configuration with [New] or
// [Parse].
package transform

import (
	"fmt"
	"image"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/matzehuels/patchaug/pkg/augment"
	"github.com/matzehuels/patchaug/pkg/errors"
)

// Registered transformation names.
const (
	NameColorJitter     = "color_jitter"
	NameGaussianBlur    = "gaussian_blur"
	NameAdjustSharpness = "adjust_sharpness"
	NamePosterize       = "posterize"
	NameIdentity        = "identity"
)

// registry maps names to constructors returning the default configuration.
var registry = map[string]func() augment.Transform{
	NameColorJitter:     func() augment.Transform { return DefaultColorJitter() },
	NameGaussianBlur:    func() augment.Transform { return DefaultGaussianBlur() },
	NameAdjustSharpness: func() augment.Transform { return DefaultAdjustSharpness() },
	NamePosterize:       func() augment.Transform { return DefaultPosterize() },
	NameIdentity:        func() augment.Transform { return Identity{} },
}

// Default returns the default transformation set.
func Default() []augment.Transform {
	return []augment.Transform{
		DefaultColorJitter(),
		DefaultGaussianBlur(),
		DefaultAdjustSharpness(),
		DefaultPosterize(),
	}
}

// Names returns all registered transformation names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Lookup returns the default-configured transformation for name.
func Lookup(name string) (augment.Transform, bool) {
	ctor, ok := registry[name]
	if !ok {
		return nil, false
	}
	return ctor(), true
}

// Parse builds default-configured transformations from a comma-separated
// list of names, e.g. "color_jitter,posterize". Duplicates are rejected
// because the augmentor samples without replacement.
func Parse(list string) ([]augment.Transform, error) {
	var out []augment.Transform
	seen := make(map[string]bool)
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if seen[name] {
			return nil, errors.New(errors.ErrCodeInvalidConfiguration, "transformation %q listed twice", name)
		}
		seen[name] = true
		t, ok := Lookup(name)
		if !ok {
			return nil, unknown(name)
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "no transformations given")
	}
	return out, nil
}

// Describe returns a one-line description of t including its parameters.
func Describe(t augment.Transform) string {
	if s, ok := t.(fmt.Stringer); ok {
		return s.String()
	}
	return t.Name()
}

// Builtin reports whether t was built by this package. Only builtin
// transformations are fully described by Describe.
func Builtin(t augment.Transform) bool {
	switch t.(type) {
	case ColorJitter, GaussianBlur, AdjustSharpness, Posterize, Identity:
		return true
	}
	return false
}

func unknown(name string) error {
	return errors.New(errors.ErrCodeInvalidConfiguration,
		"unknown transformation %q (must be one of: %s)", name, strings.Join(Names(), ", "))
}

// Identity returns its input unchanged.
type Identity struct{}

// Name implements augment.Transform.
func (Identity) Name() string { return NameIdentity }

// Apply implements augment.Transform.
func (Identity) Apply(img *image.NRGBA, _ *rand.Rand) (*image.NRGBA, error) {
	return img, nil
}

func (Identity) String() string { return NameIdentity }

// uniform draws from U[lo, hi).
func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
