package errors

import (
	"strconv"
	"strings"
	"unicode"
)

// MaxPatchDimension bounds a patch dimension typed on the command line or in
// a config file. Larger values are almost always a typo (e.g. "1600" for
// "16"). Programmatic callers are not bound by it.
const MaxPatchDimension = 1 << 14

// ValidatePatchSize checks that both patch dimensions are positive.
// A zero or negative dimension would divide by zero when computing the grid.
func ValidatePatchSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return New(ErrCodeInvalidConfiguration, "patch size must be positive, got %dx%d", width, height)
	}
	return nil
}

// ValidateTransformCount checks that n transformations can be sampled without
// replacement from a set of the given size.
func ValidateTransformCount(n, available int) error {
	if n < 0 {
		return New(ErrCodeInvalidConfiguration, "number of transformations must not be negative, got %d", n)
	}
	if n > available {
		return New(ErrCodeInvalidConfiguration, "cannot sample %d transformations from a set of %d", n, available)
	}
	return nil
}

// ValidateGrid rejects a patch grid with no columns or no rows, which
// happens when the image is smaller than one patch along an axis.
func ValidateGrid(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return New(ErrCodeInvalidConfiguration, "image is smaller than one patch (grid %dx%d)", cols, rows)
	}
	return nil
}

// ParsePatchSize parses "WxH" (e.g. "16x16", "32X8") or a single integer
// "N" meaning an NxN patch. The result is validated with ValidatePatchSize
// and capped at MaxPatchDimension.
func ParsePatchSize(s string) (width, height int, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, New(ErrCodeInvalidConfiguration, "patch size cannot be empty")
	}

	w, h, found := strings.Cut(strings.ToLower(s), "x")
	if !found {
		h = w
	}

	width, err = strconv.Atoi(strings.TrimSpace(w))
	if err != nil {
		return 0, 0, New(ErrCodeInvalidConfiguration, "invalid patch width in %q", s)
	}
	height, err = strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return 0, 0, New(ErrCodeInvalidConfiguration, "invalid patch height in %q", s)
	}

	if err := ValidatePatchSize(width, height); err != nil {
		return 0, 0, err
	}
	if width > MaxPatchDimension || height > MaxPatchDimension {
		return 0, 0, New(ErrCodeInvalidConfiguration, "patch size %dx%d exceeds maximum %d", width, height, MaxPatchDimension)
	}
	return width, height, nil
}

// ValidatePath validates an output path supplied on the command line or in
// a config file.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 4096 characters
//   - No null bytes or control characters
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 4096
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	return nil
}
