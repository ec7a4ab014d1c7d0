// Package dataset implements the filesystem stages of the pipeline: copying split
// folders, stripping annotation masks from a tree, deleting intermediate
// folders, and mapping image file names back to their 1-based image number.
package dataset

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/maruel/natural"
)

// ErrNoImageNumber is returned when a file name carries no numeric image key.
var ErrNoImageNumber = errors.New("no image number in file name")

// CopyResult summarizes a copy stage.
type CopyResult struct {
	Copied  []string // folder names (CopyFolders) or relative file paths (CopyTreeFiltered)
	Missing []string // folders that did not exist
	Skipped int      // files rejected by the filter
}

// CopyFolders copies each named folder from src into dst.
//
// Missing folders are logged and recorded; they do not fail the stage. An
// existing destination folder is merged into, with files overwritten.
func CopyFolders(src, dst string, folders []string) (CopyResult, error) {
	var result CopyResult

	if err := os.MkdirAll(dst, 0755); err != nil {
		return result, fmt.Errorf("failed to create destination %s: %w", dst, err)
	}

	for _, folder := range folders {
		from := filepath.Join(src, folder)
		info, err := os.Stat(from)
		if err != nil || !info.IsDir() {
			slog.Warn("folder not found", "path", from)
			result.Missing = append(result.Missing, folder)
			continue
		}

		if _, err := copyTree(from, filepath.Join(dst, folder), nil); err != nil {
			return result, fmt.Errorf("failed to copy folder %s: %w", folder, err)
		}
		slog.Debug("copied folder", "from", from, "to", filepath.Join(dst, folder))
		result.Copied = append(result.Copied, folder)
	}

	return result, nil
}

// CopyTreeFiltered copies every regular file under src whose base name passes
// keep into the same relative location under dst. A nil keep copies everything.
func CopyTreeFiltered(src, dst string, keep func(name string) bool) (CopyResult, error) {
	info, err := os.Stat(src)
	if err != nil {
		return CopyResult{}, fmt.Errorf("failed to open source directory: %w", err)
	}
	if !info.IsDir() {
		return CopyResult{}, fmt.Errorf("source %s is not a directory", src)
	}
	return copyTree(src, dst, keep)
}

// CopyFoldersFiltered runs CopyTreeFiltered on each named folder of src,
// writing to the same folder under dst. Missing folders are logged and
// recorded like in CopyFolders. Copied holds file paths relative to dst.
func CopyFoldersFiltered(src, dst string, folders []string, keep func(name string) bool) (CopyResult, error) {
	var result CopyResult

	for _, folder := range folders {
		from := filepath.Join(src, folder)
		info, err := os.Stat(from)
		if err != nil || !info.IsDir() {
			slog.Warn("folder not found", "path", from)
			result.Missing = append(result.Missing, folder)
			continue
		}

		copied, err := copyTree(from, filepath.Join(dst, folder), keep)
		if err != nil {
			return result, fmt.Errorf("failed to copy folder %s: %w", folder, err)
		}
		for _, rel := range copied.Copied {
			result.Copied = append(result.Copied, filepath.Join(folder, rel))
		}
		result.Skipped += copied.Skipped
	}

	return result, nil
}

// WithoutMarker returns a filter rejecting file names that contain marker.
func WithoutMarker(marker string) func(string) bool {
	return func(name string) bool {
		return !strings.Contains(name, marker)
	}
}

func copyTree(src, dst string, keep func(string) bool) (CopyResult, error) {
	var result CopyResult

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if keep != nil && !keep(d.Name()) {
			result.Skipped++
			return nil
		}

		if err := CopyFile(path, target); err != nil {
			return err
		}
		result.Copied = append(result.Copied, rel)
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("failed to copy %s: %w", src, err)
	}

	return result, nil
}

// CopyFile copies a single file, preserving its permission bits and creating
// parent directories of dst.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// RemoveFolders deletes each folder recursively. Folders that do not exist are
// logged and returned in missing.
func RemoveFolders(folders []string) (removed, missing []string, err error) {
	for _, folder := range folders {
		if _, statErr := os.Stat(folder); errors.Is(statErr, fs.ErrNotExist) {
			slog.Warn("folder does not exist", "path", folder)
			missing = append(missing, folder)
			continue
		}
		if err := os.RemoveAll(folder); err != nil {
			return removed, missing, fmt.Errorf("failed to delete %s: %w", folder, err)
		}
		removed = append(removed, folder)
	}
	return removed, missing, nil
}

var (
	overlayPattern = regexp.MustCompile(`overlay_(\d+)_`)
	stemPattern    = regexp.MustCompile(`^(\d+)_`)
)

// OverlayNumber extracts the image number from names like "overlay_12_HC.png".
func OverlayNumber(name string) (int, error) {
	return ImageNumber(name, overlayPattern)
}

// StemNumber extracts the image number from names like "12_HC.png".
func StemNumber(name string) (int, error) {
	return ImageNumber(name, stemPattern)
}

// ImageNumber returns the integer captured by the first group of pattern in name.
func ImageNumber(name string, pattern *regexp.Regexp) (int, error) {
	m := pattern.FindStringSubmatch(name)
	if len(m) < 2 {
		return 0, fmt.Errorf("%w: %s", ErrNoImageNumber, name)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrNoImageNumber, name)
	}
	return n, nil
}

// ListImages returns the names of regular files in dir whose extension is in
// exts (case-insensitive), sorted lexically. exts entries include the dot.
func ListImages(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if HasExtension(e.Name(), exts) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// HasExtension reports whether name ends in one of exts, ignoring case.
func HasExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// NaturalSort orders names so that embedded numbers compare by value
// ("2.png" before "10.png"). Letters compare case-insensitively.
func NaturalSort(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		return natural.Less(strings.ToLower(names[i]), strings.ToLower(names[j]))
	})
}
