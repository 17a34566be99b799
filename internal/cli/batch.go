package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/patchaug/pkg/errors"
	"github.com/matzehuels/patchaug/pkg/imageio"
	"github.com/matzehuels/patchaug/pkg/pipeline"
)

// batchResult is the outcome for one file of a batch.
type batchResult struct {
	input    string
	output   string
	duration time.Duration
	cached   bool
	err      error
}

// batchSummary aggregates per-file durations in milliseconds.
type batchSummary struct {
	Files  int
	Failed int
	Cached int
	Mean   float64
	Median float64
	P95    float64
	Max    float64
}

// batchCommand creates the batch command.
func (c *CLI) batchCommand() *cobra.Command {
	var (
		flags    augmentFlags
		outDir   string
		workers  int
		failFast bool
	)

	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Augment every image in a directory",
		Long: `Batch augments every image in a directory concurrently.

With --seed, file i (in lexical order) uses seed+i, so reruns reproduce the
whole batch and hit the cache.`,
		Example: `  patchaug batch photos/ -o augmented/ --seed 1 --workers 8`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			opts, err := c.baseOptions()
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, &opts); err != nil {
				return err
			}
			opts.Logger = logger
			if err := opts.ValidateAndSetDefaults(); err != nil {
				return err
			}

			inputs, err := listImages(args[0])
			if err != nil {
				return err
			}
			if len(inputs) == 0 {
				printWarning("No images found in %s", args[0])
				return nil
			}
			if outDir == "" {
				outDir = filepath.Join(args[0], "augmented")
			}

			runner, err := c.newRunner(flags.noCache)
			if err != nil {
				return err
			}
			defer runner.Close()

			prog := newProgress(logger)
			sp := newSpinner(ctx, os.Stderr, fmt.Sprintf("Augmenting %d images", len(inputs)))
			sp.Start()
			results, err := runBatch(ctx, runner, inputs, outDir, opts, workers, failFast, func(done int) {
				sp.Update(fmt.Sprintf("Augmenting images (%d/%d)", done, len(inputs)))
			})
			sp.Stop()
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Augmented %d images", len(inputs)))

			for _, r := range results {
				if r.err != nil {
					printError("%s: %s", r.input, errors.UserMessage(r.err))
				}
			}
			sum := summarize(results)
			printBatchSummary(outDir, sum)
			if sum.Failed > 0 {
				return fmt.Errorf("%d of %d images failed", sum.Failed, sum.Files)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outDir, "output", "o", "", "output directory (default <dir>/augmented)")
	cmd.Flags().IntVarP(&workers, "workers", "w", runtime.NumCPU(), "number of images processed concurrently")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop at the first failed image")

	return cmd
}

// listImages returns the image files directly inside dir, sorted.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "directory %s not found", dir)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", dir)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !imageio.IsImagePath(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// runBatch augments inputs with at most workers concurrent runs. Per-file
// failures are recorded in the results unless failFast is set, in which
// case the first failure cancels the batch and is returned.
func runBatch(ctx context.Context, runner *pipeline.Runner, inputs []string, outDir string, opts pipeline.Options, workers int, failFast bool, onDone func(int)) ([]batchResult, error) {
	if workers < 1 {
		workers = 1
	}
	results := make([]batchResult, len(inputs))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, input := range inputs {
		g.Go(func() error {
			fileOpts := opts
			if opts.Seed != nil {
				fileOpts.Seed = pipeline.Seed(*opts.Seed + uint64(i))
			}
			results[i] = augmentFile(gctx, runner, input, outDir, fileOpts)
			if onDone != nil {
				onDone(int(done.Add(1)))
			}
			if failFast && results[i].err != nil {
				return fmt.Errorf("%s: %w", input, results[i].err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

func augmentFile(ctx context.Context, runner *pipeline.Runner, input, outDir string, opts pipeline.Options) batchResult {
	r := batchResult{input: input}
	start := time.Now()
	data, err := imageio.ReadFile(input)
	if err != nil {
		r.err = err
		return r
	}
	res, err := runner.Execute(ctx, data, opts)
	if err != nil {
		r.err = err
		return r
	}
	r.output = derivedOutput(input, outDir, res.Format)
	r.err = imageio.WriteFile(r.output, res.Image)
	r.cached = res.CacheHit
	r.duration = time.Since(start)
	return r
}

// summarize computes latency statistics over the successful runs.
func summarize(results []batchResult) batchSummary {
	sum := batchSummary{Files: len(results)}
	var ms stats.Float64Data
	for _, r := range results {
		if r.err != nil {
			sum.Failed++
			continue
		}
		if r.cached {
			sum.Cached++
		}
		ms = append(ms, float64(r.duration)/float64(time.Millisecond))
	}
	if len(ms) == 0 {
		return sum
	}
	sum.Mean, _ = stats.Mean(ms)
	sum.Median, _ = stats.Median(ms)
	sum.P95, _ = stats.Percentile(ms, 95)
	sum.Max, _ = stats.Max(ms)
	return sum
}

func printBatchSummary(outDir string, s batchSummary) {
	ok := s.Files - s.Failed
	if ok > 0 {
		printSuccess("Wrote %d of %d images", ok, s.Files)
	}
	printFile(outDir)
	printKeyValue("cached", fmt.Sprintf("%d", s.Cached))
	printKeyValue("mean", fmt.Sprintf("%.1f ms", s.Mean))
	printKeyValue("median", fmt.Sprintf("%.1f ms", s.Median))
	printKeyValue("p95", fmt.Sprintf("%.1f ms", s.P95))
	printKeyValue("max", fmt.Sprintf("%.1f ms", s.Max))
}
