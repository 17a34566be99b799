package transform

import (
	"image"
	"image/color"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/patchaug/pkg/augment"
	"github.com/matzehuels/patchaug/pkg/errors"
)

func patch(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(40 + 8*x), G: uint8(200 - 6*y), B: uint8(90 + (x*y)%60), A: 0xff})
		}
	}
	return img
}

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0xdeadbeef))
}

func always(t augment.Transform) augment.Transform {
	switch v := t.(type) {
	case AdjustSharpness:
		v.P = 1
		return v
	case Posterize:
		v.P = 1
		return v
	}
	return t
}

func TestDefault(t *testing.T) {
	got := augment.Names(Default())
	want := []string{NameColorJitter, NameGaussianBlur, NameAdjustSharpness, NamePosterize}
	if !slices.Equal(got, want) {
		t.Errorf("Default() = %v, want %v", got, want)
	}
}

func TestPreservesDimensions(t *testing.T) {
	all := append(Default(), Identity{})
	for _, tr := range all {
		tr := always(tr)
		t.Run(tr.Name(), func(t *testing.T) {
			for seed := range uint64(10) {
				out, err := tr.Apply(patch(16, 12), seeded(seed))
				if err != nil {
					t.Fatalf("Apply: %v", err)
				}
				if out.Bounds().Size() != image.Pt(16, 12) {
					t.Fatalf("size = %v, want 16x12", out.Bounds().Size())
				}
			}
		})
	}
}

func TestDeterministic(t *testing.T) {
	for _, tr := range Default() {
		tr := always(tr)
		t.Run(tr.Name(), func(t *testing.T) {
			a, _ := tr.Apply(patch(16, 16), seeded(3))
			b, _ := tr.Apply(patch(16, 16), seeded(3))
			if !slices.Equal(a.Pix, b.Pix) {
				t.Error("same seed should give identical output")
			}
		})
	}
}

func TestColorJitterDisabled(t *testing.T) {
	src := patch(8, 8)
	out, err := ColorJitter{}.Apply(patch(8, 8), seeded(1))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !slices.Equal(out.Pix, src.Pix) {
		t.Error("zero jitter should be a no-op")
	}
}

func TestColorJitterBrightnessBounds(t *testing.T) {
	cj := ColorJitter{Brightness: 0.1}
	src := patch(8, 8)
	for seed := range uint64(20) {
		out, _ := cj.Apply(patch(8, 8), seeded(seed))
		for i := 0; i < len(src.Pix); i += 4 {
			lo, hi := float64(src.Pix[i])*0.9-1, float64(src.Pix[i])*1.1+1
			if v := float64(out.Pix[i]); v < lo || v > hi {
				t.Fatalf("seed %d: red %v outside [%v, %v]", seed, v, lo, hi)
			}
			if out.Pix[i+3] != src.Pix[i+3] {
				t.Fatal("alpha must be preserved")
			}
		}
	}
}

func TestRotateHueGray(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	out := rotateHue(img, 0.25)
	if !slices.Equal(out.Pix, img.Pix) {
		t.Error("hue rotation must leave gray pixels unchanged")
	}
}

func TestRotateHueRed(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	got := rotateHue(img, 1.0/3).NRGBAAt(0, 0)
	if got.G < 250 || got.R > 5 || got.B > 5 {
		t.Errorf("red rotated by 120 degrees = %v, want green", got)
	}
}

func TestPosterize(t *testing.T) {
	out, err := Posterize{Bits: 3, P: 1}.Apply(patch(8, 8), seeded(1))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for i, v := range out.Pix {
		if i%4 == 3 {
			if v != 0xff {
				t.Fatal("alpha must be preserved")
			}
			continue
		}
		if v&0x1f != 0 {
			t.Fatalf("channel value %08b keeps low bits", v)
		}
	}

	src := patch(8, 8)
	skipped, _ := Posterize{Bits: 3, P: 0}.Apply(patch(8, 8), seeded(1))
	if !slices.Equal(skipped.Pix, src.Pix) {
		t.Error("p=0 should never posterize")
	}

	zero, _ := Posterize{Bits: 0, P: 1}.Apply(patch(2, 2), seeded(1))
	if zero.Pix[0] != 0 || zero.Pix[1] != 0 || zero.Pix[2] != 0 {
		t.Error("bits=0 should zero the color channels")
	}
}

func TestAdjustSharpness(t *testing.T) {
	src := patch(8, 8)

	identity, _ := AdjustSharpness{Factor: 1, P: 1}.Apply(patch(8, 8), seeded(1))
	for i := range src.Pix {
		d := int(identity.Pix[i]) - int(src.Pix[i])
		if d < -1 || d > 1 {
			t.Fatalf("factor 1 should keep the image, pixel %d differs by %d", i, d)
		}
	}

	sharp, _ := AdjustSharpness{Factor: 2, P: 1}.Apply(patch(8, 8), seeded(1))
	for x := 0; x < 8; x++ {
		if sharp.NRGBAAt(x, 0) != src.NRGBAAt(x, 0) {
			t.Fatal("border pixels must be left untouched")
		}
	}

	tiny, _ := AdjustSharpness{Factor: 2, P: 1}.Apply(patch(2, 2), seeded(1))
	if tiny.Bounds().Size() != image.Pt(2, 2) {
		t.Error("patches smaller than the kernel keep their size")
	}
}

func TestGaussianBlurSmooths(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 9, 9))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	img.SetNRGBA(4, 4, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	out, _ := GaussianBlur{KernelSize: 5, SigmaMin: 1.5, SigmaMax: 1.5}.Apply(img, seeded(1))
	if c := out.NRGBAAt(4, 4); c.R == 255 {
		t.Error("center impulse should be spread out")
	}
	if c := out.NRGBAAt(4, 6); c.R == 0 {
		t.Error("pixel two rows below the impulse should receive energy")
	}
	if c := out.NRGBAAt(4, 7); c.R != 0 {
		t.Errorf("pixel three rows below is outside the kernel, got R=%d", c.R)
	}
	if c := out.NRGBAAt(5, 4); c.R != 0 {
		t.Errorf("horizontal neighbor should be untouched, got R=%d", c.R)
	}
}

func TestGaussianBlurIsVertical(t *testing.T) {
	stripes := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			v := uint8(0)
			if x%2 == 0 {
				v = 255
			}
			stripes.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	want := imaging.Clone(stripes)

	for seed := uint64(0); seed < 5; seed++ {
		out, err := DefaultGaussianBlur().Apply(imaging.Clone(stripes), seeded(seed))
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(out.Pix, want.Pix) {
			t.Fatalf("seed %d: vertical stripes changed, pixel (8,8) = %v", seed, out.NRGBAAt(8, 8))
		}
	}
}

func TestVerticalGaussian(t *testing.T) {
	k := verticalGaussian(3, 1)
	for i, w := range k {
		row, col := i/5, i%5
		onColumn := col == 2 && row >= 1 && row <= 3
		if onColumn != (w > 0) {
			t.Errorf("weight at row %d col %d = %g", row, col, w)
		}
	}
	if k[1*5+2] != k[3*5+2] || k[2*5+2] <= k[1*5+2] {
		t.Errorf("kernel should peak at the centre and be symmetric: %v", k)
	}
	if one := verticalGaussian(1, 2); one[12] != 1 {
		t.Errorf("single-tap kernel = %v, want identity", one)
	}
}

func TestParse(t *testing.T) {
	set, err := Parse("color_jitter, posterize")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := augment.Names(set); !slices.Equal(got, []string{NameColorJitter, NamePosterize}) {
		t.Errorf("Parse = %v", got)
	}

	for _, bad := range []string{"", "nope", "posterize,posterize", " , "} {
		if _, err := Parse(bad); !errors.Is(err, errors.ErrCodeInvalidConfiguration) {
			t.Errorf("Parse(%q) err = %v, want INVALID_CONFIGURATION", bad, err)
		}
	}
}

func TestNamesAndLookup(t *testing.T) {
	names := Names()
	if !slices.IsSorted(names) || len(names) != 5 {
		t.Errorf("Names() = %v", names)
	}
	for _, n := range names {
		tr, ok := Lookup(n)
		if !ok || tr.Name() != n {
			t.Errorf("Lookup(%q) = %v, %v", n, tr, ok)
		}
	}
	if _, ok := Lookup("missing"); ok {
		t.Error("Lookup should fail for unknown names")
	}
}

func TestDescribe(t *testing.T) {
	if got := Describe(DefaultPosterize()); got != "posterize(bits=3, p=0.5)" {
		t.Errorf("Describe = %q", got)
	}
	custom := augment.Func("custom", nil)
	if got := Describe(custom); got != "custom" {
		t.Errorf("Describe(custom) = %q", got)
	}
	if !strings.HasPrefix(Describe(DefaultColorJitter()), "color_jitter(") {
		t.Error("color jitter description should include parameters")
	}
}

func ptr[T any](v T) *T { return &v }

func TestNewFromSpec(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		want    augment.Transform
		wantErr bool
	}{
		{"defaults", Spec{Name: NameGaussianBlur}, DefaultGaussianBlur(), false},
		{"override", Spec{Name: NamePosterize, Bits: ptr(2)}, Posterize{Bits: 2, P: 0.5}, false},
		{"jitter", Spec{Name: NameColorJitter, Hue: ptr(0.2)}, ColorJitter{Brightness: 0.1, Hue: 0.2}, false},
		{"identity", Spec{Name: NameIdentity}, Identity{}, false},

		{"unknown", Spec{Name: "warp"}, nil, true},
		{"foreign parameter", Spec{Name: NamePosterize, Hue: ptr(0.1)}, nil, true},
		{"identity with parameter", Spec{Name: NameIdentity, P: ptr(0.1)}, nil, true},
		{"hue out of range", Spec{Name: NameColorJitter, Hue: ptr(0.7)}, nil, true},
		{"sigma order", Spec{Name: NameGaussianBlur, SigmaMin: ptr(3.0)}, nil, true},
		{"kernel size", Spec{Name: NameGaussianBlur, KernelSize: ptr(3)}, GaussianBlur{KernelSize: 3, SigmaMin: 0.1, SigmaMax: 2.0}, false},
		{"even kernel", Spec{Name: NameGaussianBlur, KernelSize: ptr(4)}, nil, true},
		{"kernel too tall", Spec{Name: NameGaussianBlur, KernelSize: ptr(7)}, nil, true},
		{"bits out of range", Spec{Name: NamePosterize, Bits: ptr(9)}, nil, true},
		{"probability", Spec{Name: NameAdjustSharpness, P: ptr(1.5)}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, errors.ErrCodeInvalidConfiguration) {
					t.Errorf("code = %s", errors.GetCode(err))
				}
				return
			}
			if got != tt.want {
				t.Errorf("New = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestNewSetAndSpecOf(t *testing.T) {
	specs := make([]Spec, 0, 4)
	for _, tr := range Default() {
		specs = append(specs, SpecOf(tr))
	}
	set, err := NewSet(specs)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	for i, tr := range Default() {
		if set[i] != tr {
			t.Errorf("round trip %d = %#v, want %#v", i, set[i], tr)
		}
	}

	if _, err := NewSet([]Spec{{Name: NameIdentity}, {Name: NameIdentity}}); err == nil {
		t.Error("duplicate names should be rejected")
	}
}
