// Package pkg provides the libraries behind patchaug, a patch-based image
// augmentation tool.
//
// # Overview
//
// An image is resized to a whole number of patches, cut into a row-major
// grid, and every patch receives its own random composition of
// transformations before the grid is stitched back together. The pkg
// directory is organized into three areas:
//
//  1. Core: [augment] (grid, partition, composition, reassembly) and
//     [transform] (the concrete transformation set)
//  2. Plumbing: [imageio], [config], [cache], [errors], [observability]
//  3. Entry points: [pipeline] (decode → augment → encode) and [api]
//
// # Architecture
//
//	image bytes
//	     ↓
//	[imageio] decode
//	     ↓
//	[augment] resize → partition → transform each patch → reassemble
//	     ↓
//	[imageio] encode
//	     ↓
//	[cache] (seeded runs only)
//
// # Quick Start
//
//	import (
//	    "math/rand/v2"
//
//	    "github.com/matzehuels/patchaug/pkg/augment"
//	    "github.com/matzehuels/patchaug/pkg/imageio"
//	    "github.com/matzehuels/patchaug/pkg/transform"
//	)
//
//	img, _, _ := imageio.Open("cat.png")
//	a, _ := augment.New(augment.Square(16), transform.Default(), 3)
//	out, _ := a.Augment(img, rand.New(rand.NewPCG(42, 42)))
//	imageio.Save(out, "cat_aug.png", 0)
//
// Or through the pipeline, with caching and hooks:
//
//	runner := pipeline.NewRunner(nil, nil, logger)
//	opts := pipeline.DefaultOptions()
//	opts.Seed = pipeline.Seed(42)
//	result, _ := runner.Execute(ctx, data, opts)
//
// # Testing
//
//	go test ./pkg/...            # All tests
//	go test ./pkg/augment/...    # Specific package
//
// [augment]: https://pkg.go.dev/github.com/matzehuels/patchaug/pkg/augment
// [transform]: https://pkg.go.dev/github.com/matzehuels/patchaug/pkg/transform
// [imageio]: https://pkg.go.dev/github.com/matzehuels/patchaug/pkg/imageio
// [config]: https://pkg.go.dev/github.com/matzehuels/patchaug/pkg/config
// [cache]: https://pkg.go.dev/github.com/matzehuels/patchaug/pkg/cache
// [errors]: https://pkg.go.dev/github.com/matzehuels/patchaug/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/patchaug/pkg/observability
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/patchaug/pkg/pipeline
// [api]: https://pkg.go.dev/github.com/matzehuels/patchaug/pkg/api
package pkg
