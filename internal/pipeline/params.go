package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ironsheep/ultrasound-prep/internal/config"
	"github.com/ironsheep/ultrasound-prep/internal/dataset"
	"github.com/ironsheep/ultrasound-prep/internal/detection"
	"github.com/ironsheep/ultrasound-prep/internal/imaging"
	"github.com/ironsheep/ultrasound-prep/internal/stats"
)

// Prefixes of the verification images written next to each analysed frame.
const (
	MaskPrefix    = "mask_"
	EllipsePrefix = "ellipse_"
)

// ParamsResult is the outcome of RunEllipseParams.
type ParamsResult struct {
	Summary
	Rows           []stats.Row
	Statistics     []stats.CategoryStats
	ParametersPath string
	StatisticsPath string
}

// RunEllipseParams recovers the ellipse outlined in every image under
// cfg.BaseDir/<category>, records its geometry, and writes the parameters and
// per-category statistics CSVs.
//
// For each fitted frame the binary mask and the frame with the fitted ellipse
// drawn on it are written to cfg.AnalysisDir/<category> as mask_<file> and
// ellipse_<file>. Frames without a fit are counted as skipped and leave no
// output. A missing category folder is logged and contributes nothing.
func RunEllipseParams(ctx context.Context, cfg config.EllipseConfig) (ParamsResult, error) {
	result := ParamsResult{
		Summary:        Summary{OutputDir: cfg.AnalysisDir},
		ParametersPath: cfg.ParametersCSV,
		StatisticsPath: cfg.StatisticsCSV,
	}

	stroke, err := imaging.ParseColor(cfg.Color)
	if err != nil {
		return result, fmt.Errorf("invalid ellipse color: %w", err)
	}
	style := imaging.EllipseStyle{Color: stroke, Thickness: cfg.Thickness}

	if err := os.MkdirAll(cfg.AnalysisDir, 0755); err != nil {
		return result, fmt.Errorf("failed to create analysis directory: %w", err)
	}

	for _, category := range cfg.Categories {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		rows, cc, err := analyseCategory(cfg, category, style)
		if err != nil {
			return result, err
		}
		result.Rows = append(result.Rows, rows...)
		result.Categories = append(result.Categories, cc)
	}

	if err := stats.WriteParameters(cfg.ParametersCSV, result.Rows); err != nil {
		return result, err
	}

	result.Statistics, err = stats.Compute(ctx, result.Rows)
	if err != nil {
		return result, err
	}
	if err := stats.WriteStatistics(cfg.StatisticsCSV, result.Statistics); err != nil {
		return result, err
	}

	return result, nil
}

func analyseCategory(cfg config.EllipseConfig, category string, style imaging.EllipseStyle) ([]stats.Row, CategoryCount, error) {
	cc := CategoryCount{Category: category}
	categoryPath := filepath.Join(cfg.BaseDir, category)

	if !isDir(categoryPath) {
		slog.Warn("category directory not found", "path", categoryPath)
		cc.Missing = true
		return nil, cc, nil
	}

	names, err := dataset.ListImages(categoryPath, cfg.Extensions)
	if err != nil {
		return nil, cc, err
	}
	dataset.NaturalSort(names)

	outputDir := filepath.Join(cfg.AnalysisDir, category)
	rows := make([]stats.Row, 0, len(names))

	for _, name := range names {
		imgPath := filepath.Join(categoryPath, name)
		img, err := imaging.Open(imgPath)
		if err != nil {
			skip(&cc, "could not read image", "path", imgPath, "error", err)
			continue
		}

		det, err := detection.DetectMaskEllipse(img, cfg.BlockSize, cfg.C)
		if err != nil {
			if errors.Is(err, detection.ErrNoContours) || errors.Is(err, detection.ErrTooFewPoints) ||
				errors.Is(err, detection.ErrNotEllipse) {
				cc.Skipped++
				slog.Debug("no ellipse detected", "file", name, "reason", err)
				continue
			}
			return rows, cc, fmt.Errorf("failed to analyse %s: %w", imgPath, err)
		}

		e := det.Ellipse
		rows = append(rows, stats.Row{
			Image:            name,
			Category:         category,
			CenterX:          e.CenterX,
			CenterY:          e.CenterY,
			MajorAxis:        e.Major(),
			MinorAxis:        e.Minor(),
			Angle:            e.Angle,
			AspectRatio:      e.AspectRatio(),
			ContourArea:      det.Area,
			ContourPerimeter: det.Perimeter,
			Circularity:      det.Circularity(),
		})

		if err := imaging.Save(filepath.Join(outputDir, MaskPrefix+name), det.Mask); err != nil {
			return rows, cc, err
		}
		drawn := imaging.DrawEllipse(img, e.CenterX, e.CenterY, e.Width/2, e.Height/2, e.Angle, style)
		if err := imaging.Save(filepath.Join(outputDir, EllipsePrefix+name), drawn); err != nil {
			return rows, cc, err
		}
		cc.Processed++
	}

	slog.Info("category complete", "stage", "ellipse-params", "category", category,
		"processed", cc.Processed, "skipped", cc.Skipped)
	return rows, cc, nil
}
