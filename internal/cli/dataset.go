package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ironsheep/ultrasound-prep/internal/dataset"
	"github.com/ironsheep/ultrasound-prep/internal/kaggle"
)

func (a *app) downloadCommand() *cobra.Command {
	var credentials, handle string

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the dataset from Kaggle into the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Dataset
			if credentials != "" {
				cfg.Credentials = credentials
			}
			if handle != "" {
				cfg.Handle = handle
			}
			out := cmd.OutOrStdout()

			credsPath, err := installCredentials(cfg.Credentials, cfg.KaggleDir)
			if err != nil {
				return err
			}
			creds, err := kaggle.ReadCredentials(credsPath)
			if err != nil {
				return err
			}

			fmt.Fprintln(out, "Downloading dataset...")
			path, err := kaggle.NewClient(creds).Download(cmd.Context(), cfg.Handle, cfg.CacheDir)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "Path to dataset files:", path)

			result, err := kaggle.CopyIntoProject(path, cfg.DataDir, cfg.SourceDir, cfg.SourceCSV)
			if err != nil {
				return err
			}
			if result.DatasetDir != "" {
				fmt.Fprintf(out, "Copied dataset directory to %s\n", result.DatasetDir)
			}
			if result.CSVFile != "" {
				fmt.Fprintf(out, "Copied CSV file to %s\n", result.CSVFile)
			}
			fmt.Fprintf(out, "\nDataset is now available in the '%s' directory of your project\n", cfg.DataDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&credentials, "credentials", "", "kaggle.json to install (overrides dataset.credentials)")
	cmd.Flags().StringVar(&handle, "dataset", "", "Kaggle dataset handle owner/name (overrides dataset.handle)")
	return cmd
}

// installCredentials installs src when it exists and otherwise falls back to a
// kaggle.json already present in kaggleDir.
func installCredentials(src, kaggleDir string) (string, error) {
	if src != "" {
		if _, err := os.Stat(src); err == nil {
			return kaggle.InstallCredentials(src, kaggleDir)
		}
	}

	if kaggleDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to locate home directory: %w", err)
		}
		kaggleDir = filepath.Join(home, ".kaggle")
	}
	installed := filepath.Join(kaggleDir, kaggle.CredentialsFile)
	if _, err := os.Stat(installed); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("no Kaggle credentials: %s not found and nothing installed at %s", src, installed)
		}
		return "", err
	}
	return installed, nil
}

func (a *app) extractCommand() *cobra.Command {
	var source, dest string

	cmd := &cobra.Command{
		Use:   "extract [folder...]",
		Short: "Copy the split folders into the working tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Extract
			if source != "" {
				cfg.Source = source
			}
			if dest != "" {
				cfg.Dest = dest
			}
			if len(args) > 0 {
				cfg.Folders = args
			}
			out := cmd.OutOrStdout()

			result, err := dataset.CopyFolders(cfg.Source, cfg.Dest, cfg.Folders)
			if err != nil {
				return err
			}
			for _, folder := range result.Copied {
				fmt.Fprintf(out, "Copied %s to %s\n", folder, filepath.Join(cfg.Dest, folder))
			}
			for _, folder := range result.Missing {
				fmt.Fprintf(out, "Warning: %s folder not found.\n", folder)
			}
			fmt.Fprintln(out, "Extraction complete.")
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "directory holding the split folders")
	cmd.Flags().StringVar(&dest, "dest", "", "destination directory")
	return cmd
}

func (a *app) stripCommand() *cobra.Command {
	var source, dest, marker string

	cmd := &cobra.Command{
		Use:   "strip-annotations [folder...]",
		Short: "Copy the split folders without annotated images",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Strip
			if source != "" {
				cfg.Source = source
			}
			if dest != "" {
				cfg.Dest = dest
			}
			if marker != "" {
				cfg.Marker = marker
			}
			if len(args) > 0 {
				cfg.Folders = args
			}
			out := cmd.OutOrStdout()

			result, err := dataset.CopyFoldersFiltered(cfg.Source, cfg.Dest, cfg.Folders, dataset.WithoutMarker(cfg.Marker))
			if err != nil {
				return err
			}
			for _, folder := range result.Missing {
				fmt.Fprintf(out, "Warning: %s folder not found.\n", folder)
			}
			fmt.Fprintf(out, "Copied %d files to %s, skipped %d containing %q.\n",
				len(result.Copied), cfg.Dest, result.Skipped, cfg.Marker)
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "directory holding the split folders")
	cmd.Flags().StringVar(&dest, "dest", "", "destination of the stripped copy")
	cmd.Flags().StringVar(&marker, "marker", "", "file name marker of annotated images")
	return cmd
}

func (a *app) cleanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean [folder...]",
		Short: "Delete intermediate folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			folders := a.cfg.Clean.Folders
			if len(args) > 0 {
				folders = args
			}
			out := cmd.OutOrStdout()

			removed, missing, err := dataset.RemoveFolders(folders)
			for _, folder := range removed {
				fmt.Fprintf(out, "%s folder deleted successfully.\n", folder)
			}
			if err != nil {
				return err
			}
			for _, folder := range missing {
				fmt.Fprintf(out, "Warning: %s folder not found.\n", folder)
			}
			fmt.Fprintf(out, "Deletion of old folders complete (%s).\n", strings.Join(folders, ", "))
			return nil
		},
	}
	return cmd
}
