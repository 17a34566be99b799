package errors

import (
	"strings"
	"testing"
)

func TestValidatePatchSize(t *testing.T) {
	tests := []struct {
		name    string
		w, h    int
		wantErr bool
	}{
		{"square", 16, 16, false},
		{"rectangular", 32, 8, false},
		{"one pixel", 1, 1, false},
		{"above parse limit", MaxPatchDimension + 1, 16, false},

		{"zero width", 0, 16, true},
		{"zero height", 16, 0, true},
		{"negative", -4, 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePatchSize(tt.w, tt.h)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePatchSize(%d, %d) error = %v, wantErr %v", tt.w, tt.h, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidConfiguration) {
				t.Errorf("error code = %v, want %v", GetCode(err), ErrCodeInvalidConfiguration)
			}
		})
	}
}

func TestValidateTransformCount(t *testing.T) {
	tests := []struct {
		n, available int
		wantErr      bool
	}{
		{0, 0, false},
		{0, 4, false},
		{3, 4, false},
		{4, 4, false},
		{5, 4, true},
		{1, 0, true},
		{-1, 4, true},
	}

	for _, tt := range tests {
		err := ValidateTransformCount(tt.n, tt.available)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateTransformCount(%d, %d) error = %v, wantErr %v", tt.n, tt.available, err, tt.wantErr)
		}
		if err != nil && !Is(err, ErrCodeInvalidConfiguration) {
			t.Errorf("error code = %v, want %v", GetCode(err), ErrCodeInvalidConfiguration)
		}
	}
}

func TestValidateGrid(t *testing.T) {
	if err := ValidateGrid(6, 6); err != nil {
		t.Errorf("ValidateGrid(6, 6) = %v", err)
	}
	for _, g := range [][2]int{{0, 6}, {6, 0}, {0, 0}} {
		if err := ValidateGrid(g[0], g[1]); !Is(err, ErrCodeInvalidConfiguration) {
			t.Errorf("ValidateGrid(%d, %d) = %v, want INVALID_CONFIGURATION", g[0], g[1], err)
		}
	}
}

func TestParsePatchSize(t *testing.T) {
	tests := []struct {
		input   string
		w, h    int
		wantErr bool
	}{
		{"16x16", 16, 16, false},
		{"32x8", 32, 8, false},
		{"32X8", 32, 8, false},
		{" 10 x 12 ", 10, 12, false},
		{"16", 16, 16, false},
		{"16384x1", MaxPatchDimension, 1, false},

		{"", 0, 0, true},
		{"x16", 0, 0, true},
		{"16x", 0, 0, true},
		{"axb", 0, 0, true},
		{"0x16", 0, 0, true},
		{"-2", 0, 0, true},
		{"16385x16", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			w, h, err := ParsePatchSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePatchSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if w != tt.w || h != tt.h {
				t.Errorf("ParsePatchSize(%q) = %dx%d, want %dx%d", tt.input, w, h, tt.w, tt.h)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"relative", "out/dog.png", false},
		{"absolute", "/tmp/dog.png", false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", 5000), true},
		{"null byte", "out\x00.png", true},
		{"newline", "out\n.png", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
