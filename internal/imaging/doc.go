// Package imaging provides the raster primitives used by the dataset preparation
// stages: loading and saving images, grayscale conversion, global and adaptive
// thresholding, binary morphology, ellipse stroking, and weighted blending.
//
// All operations work with standard Go image.Image types and use a coordinate system
// where (0,0) is at the top-left corner, X increases rightward, and Y increases downward.
//
// # Coordinate System
//
// Pixel coordinates are 0-based and refer to pixel indices. When a geometric
// shape is rasterized (see DrawEllipse), a center given as (cx, cy) is placed on
// the center of pixel (cx, cy), matching the convention of contours returned by
// the detection package.
//
// # Masks
//
// Binary masks are *image.Gray values where 255 marks foreground and 0 marks
// background. Every function that produces a mask guarantees that no other gray
// levels are present.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. All other functions are
// stateless and never modify their inputs.
//
// # Error Handling
//
// Functions return errors for invalid inputs such as:
//   - Even or too small adaptive threshold block sizes
//   - Unparseable color strings
//   - File I/O errors during image loading or saving
package imaging
