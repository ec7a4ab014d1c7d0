package pipeline

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ironsheep/ultrasound-prep/internal/config"
	"github.com/ironsheep/ultrasound-prep/internal/dataset"
	"github.com/ironsheep/ultrasound-prep/internal/imaging"
	"github.com/ironsheep/ultrasound-prep/internal/metadata"
)

// FrameSuffix selects the head-circumference frames that get annotated.
const FrameSuffix = "_HC.png"

// histogramScale maps the CSV histogram values onto the frame dimensions.
const histogramScale = 200

// Placement is where an annotation ellipse is drawn, in whole pixels.
type Placement struct {
	CenterX, CenterY int
	SemiX, SemiY     int
}

// PlaceEllipse derives the ellipse placement for a width x height frame from
// the histogram columns of its CSV row. Semi-axes are raised to minX and minY.
func PlaceEllipse(table *metadata.Table, row []string, width, height int, minX, minY float64) (Placement, error) {
	values := make(map[string]float64, 4)
	for _, col := range []string{
		metadata.ColumnHistogramMean,
		metadata.ColumnHistogramMedian,
		metadata.ColumnHistogramWidth,
		metadata.ColumnHistogramVariance,
	} {
		raw := table.Value(row, col)
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return Placement{}, fmt.Errorf("invalid %s value %q", col, raw)
		}
		values[col] = v
	}

	w, h := float64(width), float64(height)
	return Placement{
		CenterX: int(values[metadata.ColumnHistogramMean] * w / histogramScale),
		CenterY: int(values[metadata.ColumnHistogramMedian] * h / histogramScale),
		SemiX:   int(math.Max(math.Trunc(values[metadata.ColumnHistogramWidth]*w/histogramScale), minX)),
		SemiY:   int(math.Max(math.Trunc(values[metadata.ColumnHistogramVariance]*h/histogramScale), minY)),
	}, nil
}

// RunAnnotate draws a CSV-derived ellipse on every *_HC.png frame under
// cfg.BaseDir/cfg.DatasetsDir/<category> and saves it as
// cfg.OutputDir/<category>/<stem>_annotated.png.
//
// The leading number of a frame name selects the CSV row (1-based). The
// ellipse color is looked up from cfg.Colors by the upper-cased category.
func RunAnnotate(cfg config.AnnotateConfig) (Summary, error) {
	summary := Summary{OutputDir: cfg.OutputDir}

	csvPath := filepath.Join(cfg.BaseDir, cfg.CSV)
	table, err := metadata.ReadTable(csvPath)
	if err != nil {
		return summary, err
	}
	datasetsDir := filepath.Join(cfg.BaseDir, cfg.DatasetsDir)

	for _, category := range cfg.Categories {
		cc := CategoryCount{Category: category}
		inputDir := filepath.Join(datasetsDir, category)
		if !isDir(inputDir) {
			slog.Warn("directory not found", "path", inputDir)
			cc.Missing = true
			summary.Categories = append(summary.Categories, cc)
			continue
		}

		outputDir := filepath.Join(cfg.OutputDir, category)
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return summary, fmt.Errorf("failed to create output directory: %w", err)
		}

		names, err := listWithSuffix(inputDir, FrameSuffix)
		if err != nil {
			return summary, err
		}

		style := imaging.EllipseStyle{
			Color:     imaging.CategoryColor(cfg.Colors, strings.ToUpper(category)),
			Thickness: cfg.Thickness,
		}

		for _, name := range names {
			n, err := dataset.StemNumber(name)
			if err != nil {
				skip(&cc, "could not parse image number", "file", name)
				continue
			}
			row, err := table.Row(n)
			if err != nil {
				skip(&cc, "no matching CSV data", "file", name, "number", n)
				continue
			}

			imgPath := filepath.Join(inputDir, name)
			img, err := imaging.Open(imgPath)
			if err != nil {
				skip(&cc, "could not read image", "path", imgPath, "error", err)
				continue
			}

			b := img.Bounds()
			p, err := PlaceEllipse(table, row, b.Dx(), b.Dy(), cfg.MinMajor, cfg.MinMinor)
			if err != nil {
				skip(&cc, "invalid CSV row", "file", name, "error", err)
				continue
			}

			annotated := imaging.DrawEllipse(img,
				float64(b.Min.X+p.CenterX), float64(b.Min.Y+p.CenterY),
				float64(p.SemiX), float64(p.SemiY), 0, style)

			stem := strings.TrimSuffix(name, filepath.Ext(name))
			outPath := filepath.Join(outputDir, stem+"_annotated.png")
			if err := imaging.Save(outPath, annotated); err != nil {
				return summary, err
			}
			cc.Processed++
			slog.Debug("created annotated image", "path", outPath)
		}

		summary.Categories = append(summary.Categories, cc)
		slog.Info("category complete", "stage", "annotate", "category", category,
			"processed", cc.Processed, "skipped", cc.Skipped)
	}

	return summary, nil
}
