package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ironsheep/ultrasound-prep/internal/metadata"
	"github.com/ironsheep/ultrasound-prep/internal/prompt"
)

func (a *app) correlateCommand() *cobra.Command {
	var csvPath, outputDir string

	cmd := &cobra.Command{
		Use:   "correlate",
		Short: "Write per-split metadata CSVs for the partitioned overlay images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Correlate
			if csvPath != "" {
				cfg.CSV = csvPath
			}
			if outputDir != "" {
				cfg.OutputDir = outputDir
			}
			out := cmd.OutOrStdout()

			table, err := metadata.ReadTable(cfg.CSV)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Loaded %d metadata rows from %s\n", table.Len(), cfg.CSV)

			for _, split := range metadata.Correlate(cfg.PartitionedDir, table, cfg.Splits, cfg.Categories) {
				if split.Missing {
					fmt.Fprintf(out, "\nWarning: %s directory not found\n", split.Name)
					continue
				}
				path, err := metadata.WriteSplit(cfg.OutputDir, table, split)
				if err != nil {
					return err
				}

				summary := metadata.Summarize(table, split)
				fmt.Fprintf(out, "\n%s split: %d images -> %s\n", split.Name, summary.Total, path)
				if split.Skipped > 0 {
					fmt.Fprintf(out, "  %d files without matching metadata\n", split.Skipped)
				}
				fmt.Fprintln(out, "  Category distribution:")
				for _, c := range summary.Categories {
					fmt.Fprintf(out, "    %s: %d\n", c.Value, c.N)
				}
				if summary.FetalHealth != nil {
					fmt.Fprintln(out, "  Fetal health distribution:")
					for _, c := range summary.FetalHealth {
						fmt.Fprintf(out, "    %s: %d\n", c.Value, c.N)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "dataset metadata CSV")
	cmd.Flags().StringVar(&outputDir, "output", "", "directory for <split>_metadata.csv files")
	return cmd
}

func (a *app) jsonlCommand() *cobra.Command {
	var folder, bucketPath, output string

	cmd := &cobra.Command{
		Use:   "jsonl",
		Short: "Build the JSON Lines tuning file from labelled image folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.JSONL
			if folder != "" {
				cfg.Folder = folder
			}
			if bucketPath != "" {
				cfg.BucketPath = bucketPath
			}
			if output != "" {
				cfg.Output = output
			}

			examples, err := prompt.Generate(cfg.Folder, cfg.BucketPath, cfg.Labels)
			if err != nil {
				return err
			}
			if err := prompt.WriteJSONL(cfg.Output, examples); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d examples to %s\n", len(examples), cfg.Output)
			return nil
		},
	}

	cmd.Flags().StringVar(&folder, "folder", "", "folder with one subfolder per label")
	cmd.Flags().StringVar(&bucketPath, "bucket-path", "", "gs:// prefix the image URIs are built on")
	cmd.Flags().StringVar(&output, "output", "", "JSONL file to write")
	return cmd
}
