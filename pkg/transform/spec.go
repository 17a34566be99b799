package transform

import (
	"github.com/matzehuels/patchaug/pkg/augment"
	"github.com/matzehuels/patchaug/pkg/errors"
)

// Spec describes one configured transformation. Unset parameters keep the
// transformation's defaults; parameters that do not apply to Name are
// rejected.
type Spec struct {
	Name       string   `toml:"name" json:"name"`
	Brightness *float64 `toml:"brightness,omitempty" json:"brightness,omitempty"`
	Hue        *float64 `toml:"hue,omitempty" json:"hue,omitempty"`
	KernelSize *int     `toml:"kernel_size,omitempty" json:"kernel_size,omitempty"`
	SigmaMin   *float64 `toml:"sigma_min,omitempty" json:"sigma_min,omitempty"`
	SigmaMax   *float64 `toml:"sigma_max,omitempty" json:"sigma_max,omitempty"`
	Factor     *float64 `toml:"factor,omitempty" json:"factor,omitempty"`
	Bits       *int     `toml:"bits,omitempty" json:"bits,omitempty"`
	P          *float64 `toml:"p,omitempty" json:"p,omitempty"`
}

type validator interface {
	Validate() error
}

// New builds and validates the transformation described by s.
func New(s Spec) (augment.Transform, error) {
	var t augment.Transform
	switch s.Name {
	case NameColorJitter:
		c := DefaultColorJitter()
		set(&c.Brightness, s.Brightness)
		set(&c.Hue, s.Hue)
		t = c
	case NameGaussianBlur:
		g := DefaultGaussianBlur()
		set(&g.KernelSize, s.KernelSize)
		set(&g.SigmaMin, s.SigmaMin)
		set(&g.SigmaMax, s.SigmaMax)
		t = g
	case NameAdjustSharpness:
		a := DefaultAdjustSharpness()
		set(&a.Factor, s.Factor)
		set(&a.P, s.P)
		t = a
	case NamePosterize:
		p := DefaultPosterize()
		set(&p.Bits, s.Bits)
		set(&p.P, s.P)
		t = p
	case NameIdentity:
		t = Identity{}
	default:
		return nil, unknown(s.Name)
	}

	if extra := s.unused(); extra != "" {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "%s: unsupported parameter %q", s.Name, extra)
	}
	if v, ok := t.(validator); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// NewSet builds a transformation set from specs. Duplicate names are
// rejected.
func NewSet(specs []Spec) ([]augment.Transform, error) {
	seen := make(map[string]bool, len(specs))
	out := make([]augment.Transform, 0, len(specs))
	for _, s := range specs {
		if seen[s.Name] {
			return nil, errors.New(errors.ErrCodeInvalidConfiguration, "transformation %q configured twice", s.Name)
		}
		seen[s.Name] = true
		t, err := New(s)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// SpecOf returns the Spec that reproduces t. Transformations not built by
// this package yield a Spec with only the name set.
func SpecOf(t augment.Transform) Spec {
	s := Spec{Name: t.Name()}
	switch v := t.(type) {
	case ColorJitter:
		s.Brightness, s.Hue = &v.Brightness, &v.Hue
	case GaussianBlur:
		s.KernelSize, s.SigmaMin, s.SigmaMax = &v.KernelSize, &v.SigmaMin, &v.SigmaMax
	case AdjustSharpness:
		s.Factor, s.P = &v.Factor, &v.P
	case Posterize:
		s.Bits, s.P = &v.Bits, &v.P
	}
	return s
}

// unused returns the name of the first parameter set on s that its
// transformation does not accept.
func (s Spec) unused() string {
	accepts := map[string][]string{
		NameColorJitter:     {"brightness", "hue"},
		NameGaussianBlur:    {"kernel_size", "sigma_min", "sigma_max"},
		NameAdjustSharpness: {"factor", "p"},
		NamePosterize:       {"bits", "p"},
	}[s.Name]

	given := []struct {
		name string
		set  bool
	}{
		{"brightness", s.Brightness != nil},
		{"hue", s.Hue != nil},
		{"kernel_size", s.KernelSize != nil},
		{"sigma_min", s.SigmaMin != nil},
		{"sigma_max", s.SigmaMax != nil},
		{"factor", s.Factor != nil},
		{"bits", s.Bits != nil},
		{"p", s.P != nil},
	}
	for _, g := range given {
		if !g.set {
			continue
		}
		ok := false
		for _, a := range accepts {
			if a == g.name {
				ok = true
				break
			}
		}
		if !ok {
			return g.name
		}
	}
	return ""
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
