// Package metadata joins partitioned image files with the per-image rows of the
// dataset CSV, keyed by the image number embedded in each file name.
package metadata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/ironsheep/ultrasound-prep/internal/dataset"
)

// Columns appended to every correlated record.
const (
	ColumnImageFilename = "image_filename"
	ColumnCategory      = "category"
	ColumnSplit         = "split"
	ColumnFetalHealth   = "fetal_health"
)

// Histogram columns of the dataset CSV used to place annotation ellipses.
const (
	ColumnHistogramMean     = "histogram_mean"
	ColumnHistogramMedian   = "histogram_median"
	ColumnHistogramWidth    = "histogram_width"
	ColumnHistogramVariance = "histogram_variance"
)

// ErrRowOutOfRange is returned when an image number has no matching CSV row.
var ErrRowOutOfRange = errors.New("image number not found in dataset")

// Table is a CSV file held in memory. Row i describes image number i+1.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable loads a CSV file with a header row.
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse metadata csv %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("metadata csv %s has no header", path)
	}

	return &Table{Header: records[0], Rows: records[1:]}, nil
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Row returns the row for a 1-based image number.
func (t *Table) Row(imageNumber int) ([]string, error) {
	if imageNumber < 1 || imageNumber > len(t.Rows) {
		return nil, fmt.Errorf("%w: %d", ErrRowOutOfRange, imageNumber)
	}
	return t.Rows[imageNumber-1], nil
}

// Value returns the named column of a row, or "" when the column is absent.
func (t *Table) Value(row []string, column string) string {
	for i, h := range t.Header {
		if h == column && i < len(row) {
			return row[i]
		}
	}
	return ""
}

// Record is one correlated image: the metadata row plus where the image was found.
type Record struct {
	Values   []string // the CSV row, aligned with Table.Header
	Filename string
	Category string
	Split    string
}

// Split holds the correlated records of one split directory.
type Split struct {
	Name    string
	Records []Record
	Missing bool // the split directory did not exist
	Skipped int  // files with an unparseable name or unknown image number
}

// Correlate walks partitionedDir/<split>/<category> for overlay PNGs and attaches
// the metadata row of each image.
//
// A missing split directory is logged and yields an empty, Missing split.
// Missing category directories and non-PNG files are ignored silently.
func Correlate(partitionedDir string, table *Table, splits, categories []string) []Split {
	results := make([]Split, 0, len(splits))

	for _, split := range splits {
		result := Split{Name: split}
		splitPath := filepath.Join(partitionedDir, split)
		if _, err := os.Stat(splitPath); err != nil {
			slog.Warn("split directory not found", "path", splitPath)
			result.Missing = true
			results = append(results, result)
			continue
		}

		for _, category := range categories {
			categoryPath := filepath.Join(splitPath, category)
			names, err := dataset.ListImages(categoryPath, []string{".png"})
			if err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					slog.Warn("failed to list category", "path", categoryPath, "error", err)
				}
				continue
			}
			dataset.NaturalSort(names)

			for _, name := range names {
				number, err := dataset.OverlayNumber(name)
				if err != nil {
					slog.Warn("could not extract image number", "file", name)
					result.Skipped++
					continue
				}
				row, err := table.Row(number)
				if err != nil {
					slog.Warn("image number not found in dataset", "file", name, "number", number)
					result.Skipped++
					continue
				}
				result.Records = append(result.Records, Record{
					Values:   row,
					Filename: name,
					Category: category,
					Split:    split,
				})
			}
		}

		results = append(results, result)
	}

	return results
}

// OutputHeader returns the output header: the table columns followed by the
// correlation columns.
func (t *Table) OutputHeader() []string {
	header := make([]string, 0, len(t.Header)+3)
	header = append(header, t.Header...)
	return append(header, ColumnImageFilename, ColumnCategory, ColumnSplit)
}

// WriteSplit writes <outputDir>/<split>_metadata.csv and returns its path.
// A split without records produces a header-only file.
func WriteSplit(outputDir string, table *Table, split Split) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(outputDir, split.Name+"_metadata.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(table.OutputHeader()); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	for _, rec := range split.Records {
		row := make([]string, 0, len(table.Header)+3)
		row = append(row, rec.Values...)
		for len(row) < len(table.Header) {
			row = append(row, "")
		}
		row = append(row, rec.Filename, rec.Category, rec.Split)
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	return path, f.Close()
}

// Count is a value and how often it occurs.
type Count struct {
	Value string
	N     int
}

// Summary describes the distribution of a split.
type Summary struct {
	Total       int
	Categories  []Count
	FetalHealth []Count // nil when the table has no fetal_health column
}

// Summarize counts records per category and per fetal_health value, most
// frequent first.
func Summarize(table *Table, split Split) Summary {
	s := Summary{Total: len(split.Records)}

	categories := make(map[string]int)
	health := make(map[string]int)
	hasHealth := false
	for _, h := range table.Header {
		if h == ColumnFetalHealth {
			hasHealth = true
		}
	}

	for _, rec := range split.Records {
		categories[rec.Category]++
		if hasHealth {
			health[table.Value(rec.Values, ColumnFetalHealth)]++
		}
	}

	s.Categories = sortedCounts(categories)
	if hasHealth {
		s.FetalHealth = sortedCounts(health)
	}
	return s
}

func sortedCounts(m map[string]int) []Count {
	counts := make([]Count, 0, len(m))
	for v, n := range m {
		counts = append(counts, Count{Value: v, N: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].N != counts[j].N {
			return counts[i].N > counts[j].N
		}
		return counts[i].Value < counts[j].Value
	})
	return counts
}
