package pipeline

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ironsheep/ultrasound-prep/internal/config"
	"github.com/ironsheep/ultrasound-prep/internal/dataset"
	"github.com/ironsheep/ultrasound-prep/internal/detection"
	"github.com/ironsheep/ultrasound-prep/internal/imaging"
)

// AnnotationSuffix marks the mask that accompanies an original frame.
const AnnotationSuffix = "_Annotation.png"

// OverlayPrefix is prepended to the original file name of every overlay.
const OverlayPrefix = "overlay_"

// OriginalName maps "12_HC_Annotation.png" to "12_HC.png".
func OriginalName(annotation string) string {
	return strings.TrimSuffix(annotation, AnnotationSuffix) + ".png"
}

// RunOverlay fits the ellipse drawn in every annotation mask under
// cfg.AnnotationDir/<category> and writes the original frame with that ellipse
// blended in to cfg.OutputDir/<category>/overlay_<original>.
//
// Every subdirectory of cfg.AnnotationDir is treated as a category; categories
// are processed in natural order.
func RunOverlay(cfg config.OverlayConfig) (Summary, error) {
	summary := Summary{OutputDir: cfg.OutputDir}

	if !isDir(cfg.AnnotationDir) {
		return summary, fmt.Errorf("annotation directory not found at %s", cfg.AnnotationDir)
	}
	if cfg.Threshold < 0 || cfg.Threshold > 255 {
		return summary, fmt.Errorf("threshold %d out of range [0, 255]", cfg.Threshold)
	}
	stroke, err := imaging.ParseColor(cfg.Color)
	if err != nil {
		return summary, fmt.Errorf("invalid overlay color: %w", err)
	}
	style := imaging.EllipseStyle{Color: stroke, Thickness: cfg.Thickness}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return summary, fmt.Errorf("failed to create output directory: %w", err)
	}

	entries, err := os.ReadDir(cfg.AnnotationDir)
	if err != nil {
		return summary, fmt.Errorf("failed to read annotation directory: %w", err)
	}

	var categories []string
	for _, entry := range entries {
		if entry.IsDir() {
			categories = append(categories, entry.Name())
		}
	}
	dataset.NaturalSort(categories)

	cache := imaging.NewImageCache()
	for _, category := range categories {
		slog.Info("processing category", "stage", "overlay", "category", category)

		cc, err := overlayCategory(cfg, category, style, cache)
		if err != nil {
			return summary, err
		}
		summary.Categories = append(summary.Categories, cc)
		cache.Clear()

		slog.Info("category complete", "stage", "overlay", "category", category,
			"processed", cc.Processed, "skipped", cc.Skipped)
	}

	return summary, nil
}

func overlayCategory(cfg config.OverlayConfig, category string, style imaging.EllipseStyle, cache *imaging.ImageCache) (CategoryCount, error) {
	cc := CategoryCount{Category: category}
	categoryPath := filepath.Join(cfg.AnnotationDir, category)
	outputDir := filepath.Join(cfg.OutputDir, category)

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return cc, fmt.Errorf("failed to create output directory: %w", err)
	}

	names, err := listWithSuffix(categoryPath, AnnotationSuffix)
	if err != nil {
		return cc, err
	}

	for _, name := range names {
		annotationPath := filepath.Join(categoryPath, name)
		mask, err := imaging.Open(annotationPath)
		if err != nil {
			skip(&cc, "could not read image", "path", annotationPath, "error", err)
			continue
		}

		det, err := detection.DetectThresholdEllipse(mask, uint8(cfg.Threshold))
		switch {
		case errors.Is(err, detection.ErrNoContours):
			skip(&cc, "no contours found", "file", name)
			continue
		case errors.Is(err, detection.ErrTooFewPoints):
			skip(&cc, "not enough points to fit ellipse", "file", name, "points", len(det.Contour))
			continue
		case err != nil:
			skip(&cc, "ellipse fit failed", "file", name, "error", err)
			continue
		}

		originalName := OriginalName(name)
		originalPath := filepath.Join(categoryPath, originalName)
		if _, err := os.Stat(originalPath); err != nil {
			skip(&cc, "original image not found", "path", originalPath)
			continue
		}
		original, err := cache.Load(originalPath)
		if err != nil {
			skip(&cc, "could not read original image", "path", originalPath, "error", err)
			continue
		}

		result := Overlay(original, det.Ellipse, style, cfg.Weight)

		outPath := filepath.Join(outputDir, OverlayPrefix+originalName)
		if err := imaging.Save(outPath, result); err != nil {
			return cc, err
		}
		cc.Processed++
		slog.Debug("processed", "file", name, "output", outPath)
	}

	return cc, nil
}

// Overlay strokes e on a copy of original and blends the copy back over the
// original with the given weight. The center and semi-axes are truncated to
// whole pixels.
func Overlay(original image.Image, e detection.Ellipse, style imaging.EllipseStyle, weight float64) *image.RGBA {
	cx, cy := math.Trunc(e.CenterX), math.Trunc(e.CenterY)
	semiX, semiY := math.Trunc(e.Width/2), math.Trunc(e.Height/2)

	drawn := imaging.DrawEllipse(original, cx, cy, semiX, semiY, e.Angle, style)
	return imaging.BlendWeighted(drawn, original, weight)
}
