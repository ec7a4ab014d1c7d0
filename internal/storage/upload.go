package storage

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
)

// TreeOptions controls UploadTree.
type TreeOptions struct {
	Prefix      string                 // object name prefix inside the bucket
	Parallelism int                    // concurrent uploads; values < 1 mean 1
	Keep        func(path string) bool // optional filter; false skips the file
	Metadata    map[string]string      // attached to every object
}

// TreeResult counts the outcome of UploadTree.
type TreeResult struct {
	Uploaded int
	Skipped  int
	Failed   []string // local paths that could not be uploaded
}

// UploadTree uploads every regular file under srcDir as
// <prefix>/<base(srcDir)>/<relative path>, matching a recursive copy of the
// folder into the bucket.
//
// Uploads run concurrently up to opts.Parallelism. A failed file is logged and
// recorded without stopping the others; the returned error is non-nil when any
// file failed or srcDir cannot be walked.
func UploadTree(ctx context.Context, store ObjectStore, bucket, srcDir string, opts TreeOptions) (TreeResult, error) {
	var result TreeResult

	info, err := os.Stat(srcDir)
	if err != nil {
		return result, fmt.Errorf("source folder %s not found: %w", srcDir, err)
	}
	if !info.IsDir() {
		return result, fmt.Errorf("source %s is not a directory", srcDir)
	}

	base := filepath.Base(filepath.Clean(srcDir))
	files := make([]string, 0)
	err = filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("failed to walk %s: %w", srcDir, err)
	}

	limit := opts.Parallelism
	if limit < 1 {
		limit = 1
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, file := range files {
		file := file
		g.Go(func() error {
			if opts.Keep != nil && !opts.Keep(file) {
				mu.Lock()
				result.Skipped++
				mu.Unlock()
				return nil
			}

			rel, err := filepath.Rel(srcDir, file)
			if err != nil {
				return err
			}
			object := path.Join(opts.Prefix, base, filepath.ToSlash(rel))

			uploadErr := uploadPath(gctx, store, bucket, object, file, opts.Metadata)

			mu.Lock()
			defer mu.Unlock()
			if uploadErr != nil {
				slog.Error("upload failed", "path", file, "object", object, "error", uploadErr)
				result.Failed = append(result.Failed, file)
				return nil
			}
			slog.Debug("uploaded", "path", file, "object", object)
			result.Uploaded++
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}
	if len(result.Failed) > 0 {
		return result, fmt.Errorf("%d of %d uploads failed", len(result.Failed), len(files)-result.Skipped)
	}
	return result, nil
}

// UploadFile uploads a single file as <prefix>/<base name> and returns the
// object name.
func UploadFile(ctx context.Context, store ObjectStore, bucket, prefix, file string, metadata map[string]string) (string, error) {
	object := path.Join(prefix, filepath.Base(file))
	if err := uploadPath(ctx, store, bucket, object, file, metadata); err != nil {
		return "", err
	}
	return object, nil
}

func uploadPath(ctx context.Context, store ObjectStore, bucket, object, file string, metadata map[string]string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	return store.Upload(ctx, bucket, object, f, ObjectOptions{
		ContentType: ContentType(file),
		Metadata:    metadata,
	})
}
