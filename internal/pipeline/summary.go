package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ironsheep/ultrasound-prep/internal/dataset"
)

// CategoryCount records the outcome of one category folder.
type CategoryCount struct {
	Category  string
	Processed int
	Skipped   int
	Missing   bool // the category folder did not exist
}

// Summary is what a stage runner reports back to the CLI.
type Summary struct {
	OutputDir  string
	Categories []CategoryCount
}

// Total returns the number of images written across all categories.
func (s Summary) Total() int {
	n := 0
	for _, c := range s.Categories {
		n += c.Processed
	}
	return n
}

// Skipped returns the number of images skipped across all categories.
func (s Summary) Skipped() int {
	n := 0
	for _, c := range s.Categories {
		n += c.Skipped
	}
	return n
}

// Count returns the entry for category, or a zero CategoryCount.
func (s Summary) Count(category string) CategoryCount {
	for _, c := range s.Categories {
		if c.Category == category {
			return c
		}
	}
	return CategoryCount{Category: category}
}

// skip logs a per-image problem and counts it against cc.
func skip(cc *CategoryCount, msg string, args ...any) {
	slog.Warn(msg, args...)
	cc.Skipped++
}

// listWithSuffix returns the names in dir ending in suffix, in natural order.
func listWithSuffix(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), suffix) {
			names = append(names, e.Name())
		}
	}
	dataset.NaturalSort(names)
	return names, nil
}

// isDir reports whether path exists and is a directory.
func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
