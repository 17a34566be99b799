// Package augment implements patch-based image augmentation.
//
// An image is resized down to the nearest multiple of the patch size,
// partitioned into a row-major grid of non-overlapping patches, and every
// patch receives its own randomly sampled, randomly ordered composition of
// transformations. The transformed patches are then pasted back into a fresh
// canvas of the resized dimensions.
//
// # Pipeline
//
//  1. [Resize]: floor each dimension to a multiple of the patch dimension.
//     Any remainder strip on the right or bottom is discarded.
//  2. [Partition]: crop patches left-to-right, top-to-bottom.
//  3. [Compose] and [ApplyAll]: sample n distinct transformations without
//     replacement, shuffle them, and apply them in order.
//  4. [Reassemble]: paste patch i at column i mod cols, row i / cols.
//
// # Randomness
//
// All randomness comes from the *rand.Rand passed to each call. Passing a
// seeded generator makes a run fully reproducible:
//
//	rng := rand.New(rand.NewPCG(42, 42^0xdeadbeef))
//	out, err := augment.Augment(img, augment.PatchSize{Width: 16, Height: 16}, transform.Default(), 3, rng)
//
// An [Augmentor] holds only immutable configuration and may be shared
// between goroutines as long as every call uses its own generator.
//
// # Errors
//
// Configuration problems (non-positive patch size, a transformation count
// outside [0, len(set)], an image smaller than one patch) fail with
// errors.ErrCodeInvalidConfiguration before any pixel is touched. Errors
// returned by a [Transform] are passed through unchanged.
package augment
