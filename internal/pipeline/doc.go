// Package pipeline runs the image stages of dataset preparation over whole
// category folders.
//
// Each runner takes its section of the configuration, walks the category
// directories it names, and returns a Summary of what was written and skipped.
// Per-image problems (unreadable files, frames without a usable contour,
// missing originals, unknown image numbers) are logged with log/slog and
// counted as skipped; only problems that prevent the stage as a whole, such as
// a missing input root or an unwritable output, are returned as errors.
//
// # Stages
//
//   - RunOverlay: fit the ellipse drawn in each *_Annotation.png mask and blend
//     it over the matching original frame.
//   - RunEllipseParams: recover the ellipse outlined in each overlaid frame,
//     record its geometry, and aggregate the geometry per category.
//   - RunAnnotate: draw an ellipse placed from the dataset CSV's histogram
//     columns on each *_HC.png frame.
//
// # Geometry
//
// Fitted ellipses report full axis lengths; drawing uses half of them as
// semi-axes. Overlay and annotation drawing truncate the center and semi-axes
// to whole pixels before stroking, so outputs line up with the pixel grid of
// the source frames.
package pipeline
