// Package config loads patchaug settings from TOML.
//
// A configuration file looks like:
//
//	patch_size = "16x16"
//	num_transformations = 3
//	seed = 42
//	format = "png"
//	quality = 95
//
//	[[transform]]
//	name = "color_jitter"
//	brightness = 0.1
//	hue = 0.1
//
//	[[transform]]
//	name = "posterize"
//	bits = 3
//	p = 0.5
//
// Omitted keys keep their defaults. Omitting every [[transform]] table
// selects the default transformation set. Unknown keys are rejected.
package config

import (
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/patchaug/pkg/augment"
	"github.com/matzehuels/patchaug/pkg/errors"
	"github.com/matzehuels/patchaug/pkg/imageio"
	"github.com/matzehuels/patchaug/pkg/pipeline"
	"github.com/matzehuels/patchaug/pkg/transform"
)

// DefaultFilename is looked up in the working directory when no path is
// given.
const DefaultFilename = "patchaug.toml"

// Config is the decoded configuration file.
type Config struct {
	PatchSize          string           `toml:"patch_size"`
	NumTransformations int              `toml:"num_transformations"`
	Seed               *uint64          `toml:"seed,omitempty"`
	Format             string           `toml:"format,omitempty"`
	Quality            int              `toml:"quality,omitempty"`
	Transform          []transform.Spec `toml:"transform"`
}

// file mirrors Config with pointers so omitted keys can be told apart from
// zero values.
type file struct {
	PatchSize          *string          `toml:"patch_size"`
	NumTransformations *int             `toml:"num_transformations"`
	Seed               *uint64          `toml:"seed"`
	Format             *string          `toml:"format"`
	Quality            *int             `toml:"quality"`
	Transform          []transform.Spec `toml:"transform"`
}

// Default returns the built-in configuration: 16x16 patches, three
// transformations per patch, the default transformation set, no seed.
func Default() *Config {
	specs := make([]transform.Spec, 0, 4)
	for _, t := range transform.Default() {
		specs = append(specs, transform.SpecOf(t))
	}
	return &Config{
		PatchSize:          augment.Square(pipeline.DefaultPatchSize).String(),
		NumTransformations: pipeline.DefaultNumTransformations,
		Quality:            imageio.DefaultQuality,
		Transform:          specs,
	}
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	if err := errors.ValidatePath(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "config %s not found", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read config %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		code := errors.GetCode(err)
		if code == "" {
			code = errors.ErrCodeInvalidConfiguration
		}
		return nil, errors.Wrap(code, err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes and validates TOML data.
func Parse(data []byte) (*Config, error) {
	var f file
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, err, "parse TOML")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "unknown key %q", undecoded[0].String())
	}

	cfg := Default()
	if f.PatchSize != nil {
		cfg.PatchSize = *f.PatchSize
	}
	if f.NumTransformations != nil {
		cfg.NumTransformations = *f.NumTransformations
	}
	if f.Seed != nil {
		cfg.Seed = f.Seed
	}
	if f.Format != nil {
		cfg.Format = *f.Format
	}
	if f.Quality != nil {
		cfg.Quality = *f.Quality
	}
	if f.Transform != nil {
		cfg.Transform = f.Transform
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve loads path if set, else DefaultFilename if it exists in the
// working directory, else Default.
func Resolve(path string) (*Config, string, error) {
	if path != "" {
		cfg, err := Load(path)
		return cfg, path, err
	}
	if _, err := os.Stat(DefaultFilename); err == nil {
		cfg, err := Load(DefaultFilename)
		return cfg, DefaultFilename, err
	}
	return Default(), "", nil
}

// Validate checks every field.
func (c *Config) Validate() error {
	if _, err := augment.ParsePatchSize(c.PatchSize); err != nil {
		return err
	}
	set, err := c.Transforms()
	if err != nil {
		return err
	}
	if err := errors.ValidateTransformCount(c.NumTransformations, len(set)); err != nil {
		return err
	}
	if c.Format != "" {
		if _, err := imageio.ValidateFormat(c.Format); err != nil {
			return err
		}
	}
	if c.Quality < 0 || c.Quality > 100 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "quality must be in [0, 100] (0 selects the default), got %d", c.Quality)
	}
	return nil
}

// Transforms builds the configured transformation set.
func (c *Config) Transforms() ([]augment.Transform, error) {
	if len(c.Transform) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "at least one [[transform]] is required")
	}
	return transform.NewSet(c.Transform)
}

// PipelineOptions converts the configuration into pipeline options.
func (c *Config) PipelineOptions() (pipeline.Options, error) {
	size, err := augment.ParsePatchSize(c.PatchSize)
	if err != nil {
		return pipeline.Options{}, err
	}
	set, err := c.Transforms()
	if err != nil {
		return pipeline.Options{}, err
	}
	opts := pipeline.Options{
		PatchSize:          size,
		NumTransformations: c.NumTransformations,
		Transforms:         set,
		Format:             c.Format,
		Quality:            c.Quality,
	}
	if c.Seed != nil {
		opts.Seed = pipeline.Seed(*c.Seed)
	}
	return opts, nil
}

// Encode writes c as TOML.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Save writes c to path, refusing to overwrite unless force is set.
func (c *Config) Save(path string, force bool) error {
	if err := errors.ValidatePath(path); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return errors.Wrap(errors.ErrCodeInvalidPath, err, "%s already exists", path)
		}
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", path)
	}
	if err := c.Encode(f); err != nil {
		f.Close()
		return errors.Wrap(errors.ErrCodeInternal, err, "write %s", path)
	}
	return f.Close()
}
