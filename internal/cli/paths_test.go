package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}
	if want := filepath.Join(home, ".cache", appName); dir != want {
		t.Errorf("cacheDir() = %q, want %q", dir, want)
	}
}

func TestCacheDirXDG(t *testing.T) {
	custom := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", custom)

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}
	if want := filepath.Join(custom, appName); dir != want {
		t.Errorf("cacheDir() with XDG_CACHE_HOME = %q, want %q", dir, want)
	}
}

func TestNewCache(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	c, err := newCache(true)
	if err != nil {
		t.Fatalf("newCache(true): %v", err)
	}
	if _, ok, _ := c.Get(t.Context(), "k"); ok {
		t.Error("disabled cache should never hit")
	}

	c, err = newCache(false)
	if err != nil {
		t.Fatalf("newCache(false): %v", err)
	}
	if err := c.Set(t.Context(), "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	dir, _ := cacheDir()
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("file cache directory not created: %v", err)
	}
}

func TestDerivedOutput(t *testing.T) {
	tests := []struct {
		input, dir, format, want string
	}{
		{"photos/cat.png", "", "png", filepath.Join("photos", "cat_aug.png")},
		{"photos/cat.png", "out", "jpeg", filepath.Join("out", "cat_aug.jpg")},
		{"dog.tiff", "", "tiff", "dog_aug.tif"},
		{"a.b.bmp", "x", "bmp", filepath.Join("x", "a.b_aug.bmp")},
	}
	for _, tt := range tests {
		if got := derivedOutput(tt.input, tt.dir, tt.format); got != tt.want {
			t.Errorf("derivedOutput(%q, %q, %q) = %q, want %q", tt.input, tt.dir, tt.format, got, tt.want)
		}
	}
}
