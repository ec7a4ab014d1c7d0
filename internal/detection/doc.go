// Package detection locates the annotated ellipse inside ultrasound mask images.
//
// The pipeline mirrors the classic contour-fitting approach:
//
//  1. Binarization: a global threshold for clean annotation masks, or an inverted
//     adaptive threshold followed by closing and opening for overlaid frames
//  2. Contour Finding: outer borders of 8-connected foreground components,
//     compressed so that only the end points of straight runs remain
//  3. Selection: the contour enclosing the largest area
//  4. Fitting: a direct least-squares ellipse fit over the contour points
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//   - Angles are measured in degrees from the +X axis towards +Y (clockwise on screen)
//
// # Ellipse Geometry
//
// Fitted ellipses report full axis lengths. Width is always the major axis and
// Angle is the orientation of that axis in [0, 180).
//
// # Failure Modes
//
// Detection reports why an ellipse could not be found through sentinel errors
// (ErrNoContours, ErrTooFewPoints, ErrNotEllipse) so callers can log the reason
// and skip the file.
package detection
