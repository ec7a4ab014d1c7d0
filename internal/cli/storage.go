package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ironsheep/ultrasound-prep/internal/ocr"
	"github.com/ironsheep/ultrasound-prep/internal/storage"
)

// MetadataRunID is the object metadata key carrying the invocation's run id.
const MetadataRunID = "prep-run-id"

// storeFlags selects between Cloud Storage and a local mirror.
type storeFlags struct {
	local string
}

func (f *storeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.local, "local", "", "write buckets as directories under this root instead of Cloud Storage")
}

// openStore returns the selected store and a function releasing it.
func (a *app) openStore(ctx context.Context, f storeFlags) (storage.ObjectStore, func() error, error) {
	if f.local != "" {
		return storage.NewLocalStore(f.local), func() error { return nil }, nil
	}
	store, err := storage.NewGCSStore(ctx, a.cfg.Storage.Project, a.cfg.Storage.Location)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

func (a *app) bucketCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bucket",
		Short: "Manage the storage bucket",
	}

	var flags storeFlags
	create := &cobra.Command{
		Use:   "create [bucket]",
		Short: "Create the bucket (default storage.bucket)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bucket := a.cfg.Storage.Bucket
			if len(args) == 1 {
				bucket = args[0]
			}

			store, closeStore, err := a.openStore(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer closeStore()

			err = store.CreateBucket(cmd.Context(), bucket)
			switch {
			case errors.Is(err, storage.ErrBucketExists):
				fmt.Fprintf(cmd.OutOrStdout(), "Bucket %s already exists.\n", bucket)
				return nil
			case err != nil:
				return fmt.Errorf("error creating bucket: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bucket %s created successfully.\n", bucket)
			return nil
		},
	}
	flags.register(create)

	cmd.AddCommand(create)
	return cmd
}

func (a *app) uploadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload prepared data to the bucket",
	}
	cmd.AddCommand(a.uploadDirCommand(), a.uploadFileCommand())
	return cmd
}

func (a *app) uploadDirCommand() *cobra.Command {
	var (
		flags      storeFlags
		bucket     string
		prefix     string
		screenText bool
	)

	cmd := &cobra.Command{
		Use:   "dir [folder]",
		Short: "Upload a folder recursively (default storage.sourceFolder)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Storage
			if len(args) == 1 {
				cfg.SourceFolder = args[0]
			}
			if bucket != "" {
				cfg.Bucket = bucket
			}
			if cmd.Flags().Changed("screen-text") {
				cfg.ScreenText = screenText
			}
			ctx := cmd.Context()

			store, closeStore, err := a.openStore(ctx, flags)
			if err != nil {
				return err
			}
			defer closeStore()

			if flags.local != "" {
				if err := store.CreateBucket(ctx, cfg.Bucket); err != nil && !errors.Is(err, storage.ErrBucketExists) {
					return err
				}
			}

			opts := storage.TreeOptions{
				Prefix:      prefix,
				Parallelism: cfg.Parallelism,
				Metadata:    map[string]string{MetadataRunID: a.runID},
			}
			if cfg.ScreenText {
				opts.Keep = ocr.NewScreener(cfg.MinConfidence, cfg.MinTextLength).Keep
			}

			result, err := storage.UploadTree(ctx, store, cfg.Bucket, cfg.SourceFolder, opts)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Uploaded %d files, skipped %d, failed %d.\n", result.Uploaded, result.Skipped, len(result.Failed))
			if err != nil {
				return fmt.Errorf("error uploading to storage: %w", err)
			}
			dest := storage.URI{Bucket: cfg.Bucket, Prefix: prefix}
			fmt.Fprintf(out, "Uploaded %s to %s/ successfully.\n", cfg.SourceFolder, dest)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&bucket, "bucket", "", "destination bucket (overrides storage.bucket)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "object name prefix inside the bucket")
	cmd.Flags().BoolVar(&screenText, "screen-text", false, "skip images with burned-in text (requires Tesseract)")
	return cmd
}

func (a *app) uploadFileCommand() *cobra.Command {
	var (
		flags storeFlags
		dest  string
	)

	cmd := &cobra.Command{
		Use:   "file [file]",
		Short: "Upload a single file (default storage.jsonlFile)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Storage
			file := cfg.JSONLFile
			if len(args) == 1 {
				file = args[0]
			}

			target := storage.URI{Bucket: cfg.Bucket}
			if dest != "" {
				u, err := storage.ParseURI(dest)
				if err != nil {
					return err
				}
				target = u
			}
			ctx := cmd.Context()

			store, closeStore, err := a.openStore(ctx, flags)
			if err != nil {
				return err
			}
			defer closeStore()

			if flags.local != "" {
				if err := store.CreateBucket(ctx, target.Bucket); err != nil && !errors.Is(err, storage.ErrBucketExists) {
					return err
				}
			}

			object, err := storage.UploadFile(ctx, store, target.Bucket, target.Prefix, file,
				map[string]string{MetadataRunID: a.runID})
			if err != nil {
				return fmt.Errorf("error uploading to storage: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s to gs://%s/%s successfully.\n", file, target.Bucket, object)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&dest, "dest", "", "gs://bucket[/prefix] destination (default storage.bucket)")
	return cmd
}
