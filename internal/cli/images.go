package cli

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ironsheep/ultrasound-prep/internal/pipeline"
	"github.com/ironsheep/ultrasound-prep/internal/stats"
)

func (a *app) overlayCommand() *cobra.Command {
	var annotationDir, outputDir string

	cmd := &cobra.Command{
		Use:   "overlay",
		Short: "Blend the ellipse fitted from each annotation mask over its frame",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Overlay
			if annotationDir != "" {
				cfg.AnnotationDir = annotationDir
			}
			if outputDir != "" {
				cfg.OutputDir = outputDir
			}
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Starting overlay generation...")
			summary, err := pipeline.RunOverlay(cfg)
			if err != nil {
				return err
			}

			fmt.Fprintln(out, "\nOverlay generation complete!")
			fmt.Fprintf(out, "Total images processed: %d\n", summary.Total())
			printCategories(out, summary)
			fmt.Fprintf(out, "\nOverlays have been saved to: %s\n", summary.OutputDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&annotationDir, "annotations", "", "directory of category folders with annotation masks")
	cmd.Flags().StringVar(&outputDir, "output", "", "overlay output directory")
	return cmd
}

func (a *app) ellipseParamsCommand() *cobra.Command {
	var baseDir string

	cmd := &cobra.Command{
		Use:   "ellipse-params",
		Short: "Measure the ellipse outlined in each overlaid frame and summarize per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Ellipse
			if baseDir != "" {
				cfg.BaseDir = baseDir
			}
			out := cmd.OutOrStdout()

			result, err := pipeline.RunEllipseParams(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			fmt.Fprintln(out, "\nEllipse Parameters Summary:")
			fmt.Fprintln(out, "\nCategory-wise Statistics:")
			if err := printStatistics(out, result.Statistics); err != nil {
				return err
			}
			printCategories(out, result.Summary)
			fmt.Fprintf(out, "\nParameters written to %s, statistics to %s\n", result.ParametersPath, result.StatisticsPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&baseDir, "base", "", "directory of category folders with overlaid frames")
	return cmd
}

func (a *app) annotateCommand() *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Draw metadata-derived ellipses on the head circumference frames",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Annotate
			if outputDir != "" {
				cfg.OutputDir = outputDir
			}
			out := cmd.OutOrStdout()

			summary, err := pipeline.RunAnnotate(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Created %d annotated images in %s\n", summary.Total(), summary.OutputDir)
			printCategories(out, summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&outputDir, "output", "", "annotated image output directory")
	return cmd
}

// printCategories lists the per-category counts of a stage summary.
func printCategories(w io.Writer, s pipeline.Summary) {
	fmt.Fprintln(w, "\nImages processed by category:")
	for _, c := range s.Categories {
		switch {
		case c.Missing:
			fmt.Fprintf(w, "%s: directory not found\n", c.Category)
		case c.Skipped > 0:
			fmt.Fprintf(w, "%s: %d images (%d skipped)\n", c.Category, c.Processed, c.Skipped)
		default:
			fmt.Fprintf(w, "%s: %d images\n", c.Category, c.Processed)
		}
	}
}

// printStatistics renders the per-category aggregates as an aligned table.
func printStatistics(w io.Writer, rows []stats.CategoryStats) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := stats.StatisticsColumns()
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")
	for _, cs := range rows {
		cells := []string{cs.Category, fmt.Sprint(cs.Count)}
		for _, col := range header[2:] {
			cells = append(cells, formatStat(cs.Values[col]))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	return tw.Flush()
}

func formatStat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%.2f", v)
}
