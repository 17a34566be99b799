package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/patchaug/pkg/augment"
	"github.com/matzehuels/patchaug/pkg/errors"
	"github.com/matzehuels/patchaug/pkg/imageio"
	"github.com/matzehuels/patchaug/pkg/pipeline"
	"github.com/matzehuels/patchaug/pkg/transform"
)

// augmentFlags are the pipeline flags shared by augment and batch. Only
// flags the user set override the config file.
type augmentFlags struct {
	patch      string
	n          int
	seed       uint64
	format     string
	quality    int
	transforms string
	noCache    bool
	refresh    bool
}

func (f *augmentFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.patch, "patch", "", "patch size as WxH or N (default 16x16)")
	fs.IntVarP(&f.n, "num", "n", pipeline.DefaultNumTransformations, "transformations applied to each patch")
	fs.Uint64Var(&f.seed, "seed", 0, "random seed; makes the output reproducible and cacheable")
	fs.StringVarP(&f.format, "format", "f", "", "output format: "+strings.Join(imageio.Formats(), ", "))
	fs.IntVar(&f.quality, "quality", imageio.DefaultQuality, "JPEG quality (1-100)")
	fs.StringVarP(&f.transforms, "transforms", "t", "", "comma-separated transformations (see 'patchaug transforms')")
	fs.BoolVar(&f.noCache, "no-cache", false, "disable the artifact cache")
	fs.BoolVar(&f.refresh, "refresh", false, "ignore cached results and recompute")
}

func (f *augmentFlags) apply(cmd *cobra.Command, opts *pipeline.Options) error {
	fs := cmd.Flags()
	if fs.Changed("patch") {
		size, err := augment.ParsePatchSize(f.patch)
		if err != nil {
			return err
		}
		opts.PatchSize = size
	}
	if fs.Changed("num") {
		opts.NumTransformations = f.n
	}
	if fs.Changed("seed") {
		opts.Seed = pipeline.Seed(f.seed)
	}
	if fs.Changed("format") {
		opts.Format = f.format
	}
	if fs.Changed("quality") {
		opts.Quality = f.quality
	}
	if fs.Changed("transforms") {
		set, err := transform.Parse(f.transforms)
		if err != nil {
			return err
		}
		opts.Transforms = set
	}
	opts.Refresh = f.refresh
	return nil
}

// augmentCommand creates the augment command.
func (c *CLI) augmentCommand() *cobra.Command {
	var (
		flags     augmentFlags
		output    string
		traceFile string
	)

	cmd := &cobra.Command{
		Use:   "augment <image>",
		Short: "Augment a single image patch by patch",
		Long: `Augment resizes the image to a multiple of the patch size, applies a random
composition of transformations to every patch and writes the result.

Without -o the result is written next to the input as <name>_aug.<format>.`,
		Example: `  patchaug augment photo.png
  patchaug augment photo.png -o out.jpg --patch 32x32 -n 2 --seed 7
  patchaug augment photo.png -t color_jitter,posterize --trace trace.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			input := args[0]

			opts, err := c.baseOptions()
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, &opts); err != nil {
				return err
			}
			if output != "" && !cmd.Flags().Changed("format") {
				if f, err := imageio.FormatFromPath(output); err == nil {
					opts.Format = f
				}
			}
			opts.Trace = traceFile != ""
			opts.Logger = logger

			data, err := imageio.ReadFile(input)
			if err != nil {
				return err
			}
			runner, err := c.newRunner(flags.noCache)
			if err != nil {
				return err
			}
			defer runner.Close()

			sp := newSpinner(ctx, os.Stderr, "Augmenting "+filepath.Base(input))
			sp.Start()
			res, err := runner.Execute(ctx, data, opts)
			sp.Stop()
			if err != nil {
				return err
			}

			if output == "" {
				output = derivedOutput(input, "", res.Format)
			}
			if err := imageio.WriteFile(output, res.Image); err != nil {
				return err
			}
			if traceFile != "" {
				if err := writeTrace(traceFile, res.Trace); err != nil {
					return err
				}
			}

			printSuccess("Augmented %s", input)
			printFile(output)
			if traceFile != "" {
				printFile(traceFile)
			}
			printStats(res.Stats, res.CacheHit)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (format taken from its extension)")
	cmd.Flags().StringVar(&traceFile, "trace", "", "write the per-patch composition as JSON to this file")

	return cmd
}

// derivedOutput names the result for input: <dir>/<name>_aug.<ext>. An
// empty dir keeps the input's directory.
func derivedOutput(input, dir, format string) string {
	base := filepath.Base(input)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, name+"_aug."+extension(format))
}

func extension(format string) string {
	switch format {
	case imageio.FormatJPEG:
		return "jpg"
	case imageio.FormatTIFF:
		return "tif"
	}
	return format
}

func writeTrace(path string, trace *augment.Trace) error {
	data, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode trace")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", path)
	}
	return nil
}
