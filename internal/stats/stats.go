// Package stats records fitted ellipse parameters and aggregates them per
// category in an in-memory DuckDB database.
package stats

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/marcboeker/go-duckdb"
)

// Row is the parameter record of one analysed image.
type Row struct {
	Image            string
	Category         string
	CenterX          float64
	CenterY          float64
	MajorAxis        float64
	MinorAxis        float64
	Angle            float64
	AspectRatio      float64
	ContourArea      float64
	ContourPerimeter float64
	Circularity      float64
}

// ParameterColumns is the header of the parameters CSV.
var ParameterColumns = []string{
	"image", "category", "center_x", "center_y", "major_axis", "minor_axis", "angle",
	"aspect_ratio", "contour_area", "contour_perimeter", "circularity",
}

// Metrics are the columns summarized per category.
var Metrics = []string{"major_axis", "minor_axis", "angle", "aspect_ratio", "contour_area", "circularity"}

// Aggregates are computed for every metric, in this order.
var Aggregates = []string{"mean", "std", "min", "max"}

// CategoryStats holds the rounded aggregates of one category. Values maps
// "<metric>_<aggregate>" to its value; NaN marks an undefined aggregate such as
// the standard deviation of a single sample.
type CategoryStats struct {
	Category string
	Count    int
	Values   map[string]float64
}

// Store is an in-memory DuckDB table of parameter rows.
type Store struct {
	db *sql.DB
}

// NewStore opens an in-memory database and creates the parameters table.
func NewStore() (*Store, error) {
	connector, err := duckdb.NewConnector("", func(execer driver.ExecerContext) error {
		_, err := execer.ExecContext(context.Background(), "PRAGMA enable_progress_bar=false", nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	_, err = db.Exec(`
		CREATE TABLE ellipses (
			image             VARCHAR NOT NULL,
			category          VARCHAR NOT NULL,
			center_x          DOUBLE,
			center_y          DOUBLE,
			major_axis        DOUBLE,
			minor_axis        DOUBLE,
			angle             DOUBLE,
			aspect_ratio      DOUBLE,
			contour_area      DOUBLE,
			contour_perimeter DOUBLE,
			circularity       DOUBLE
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append inserts rows using the DuckDB appender.
func (s *Store) Append(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn any) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "ellipses")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for i, r := range rows {
			err := appender.AppendRow(
				r.Image, r.Category,
				r.CenterX, r.CenterY,
				r.MajorAxis, r.MinorAxis, r.Angle, r.AspectRatio,
				r.ContourArea, r.ContourPerimeter, r.Circularity,
			)
			if err != nil {
				return fmt.Errorf("failed to append row %d: %w", i, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}
	return nil
}

// CategoryStats returns mean, sample standard deviation, min and max of every
// metric per category, rounded to two decimals and ordered by category name.
func (s *Store) CategoryStats(ctx context.Context) ([]CategoryStats, error) {
	selects := []string{"category", "count(*)"}
	for _, m := range Metrics {
		selects = append(selects,
			fmt.Sprintf("round(avg(%s), 2)", m),
			fmt.Sprintf("round(stddev_samp(%s), 2)", m),
			fmt.Sprintf("round(min(%s), 2)", m),
			fmt.Sprintf("round(max(%s), 2)", m),
		)
	}
	query := "SELECT " + strings.Join(selects, ", ") + " FROM ellipses GROUP BY category ORDER BY category"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query statistics: %w", err)
	}
	defer rows.Close()

	var result []CategoryStats
	for rows.Next() {
		var cs CategoryStats
		var count int64
		values := make([]sql.NullFloat64, len(Metrics)*len(Aggregates))
		dest := []any{&cs.Category, &count}
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan statistics: %w", err)
		}

		cs.Count = int(count)
		cs.Values = make(map[string]float64, len(values))
		for mi, m := range Metrics {
			for ai, a := range Aggregates {
				v := values[mi*len(Aggregates)+ai]
				if v.Valid && !math.IsNaN(v.Float64) {
					cs.Values[m+"_"+a] = v.Float64
				} else {
					cs.Values[m+"_"+a] = math.NaN()
				}
			}
		}
		result = append(result, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read statistics: %w", err)
	}

	return result, nil
}

// Compute loads rows into a fresh store and returns the per-category statistics.
func Compute(ctx context.Context, rows []Row) ([]CategoryStats, error) {
	store, err := NewStore()
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if err := store.Append(ctx, rows); err != nil {
		return nil, err
	}
	return store.CategoryStats(ctx)
}

// WriteParameters writes one CSV line per row.
func WriteParameters(path string, rows []Row) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.Image, r.Category,
			formatFloat(r.CenterX), formatFloat(r.CenterY),
			formatFloat(r.MajorAxis), formatFloat(r.MinorAxis), formatFloat(r.Angle),
			formatFloat(r.AspectRatio), formatFloat(r.ContourArea),
			formatFloat(r.ContourPerimeter), formatFloat(r.Circularity),
		})
	}
	return writeCSV(path, ParameterColumns, records)
}

// StatisticsColumns returns the header of the statistics CSV.
func StatisticsColumns() []string {
	header := []string{"category", "count"}
	for _, m := range Metrics {
		for _, a := range Aggregates {
			header = append(header, m+"_"+a)
		}
	}
	return header
}

// WriteStatistics writes one CSV line per category. Undefined aggregates are
// left empty.
func WriteStatistics(path string, stats []CategoryStats) error {
	header := StatisticsColumns()
	records := make([][]string, 0, len(stats))
	for _, cs := range stats {
		rec := []string{cs.Category, strconv.Itoa(cs.Count)}
		for _, col := range header[2:] {
			rec = append(rec, formatFloat(cs.Values[col]))
		}
		records = append(records, rec)
	}
	return writeCSV(path, header, records)
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeCSV(path string, header []string, records [][]string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
