// Package config loads the YAML configuration shared by every pipeline stage.
//
// Defaults reproduce the fixed paths the dataset layout expects, so a missing
// default config file is not an error.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/ultrasound-prep/internal/imaging"
)

// EnvConfigPath names the environment variable consulted when no --config flag is given.
const EnvConfigPath = "CONFIG_PATH"

// DefaultPath is the config location relative to the working directory.
var DefaultPath = filepath.Join("config", "config.yaml")

// Config holds one section per pipeline stage.
type Config struct {
	Dataset   DatasetConfig   `yaml:"dataset"`
	Extract   ExtractConfig   `yaml:"extract"`
	Strip     StripConfig     `yaml:"strip"`
	Clean     CleanConfig     `yaml:"clean"`
	Overlay   OverlayConfig   `yaml:"overlay"`
	Ellipse   EllipseConfig   `yaml:"ellipse"`
	Annotate  AnnotateConfig  `yaml:"annotate"`
	Correlate CorrelateConfig `yaml:"correlate"`
	JSONL     JSONLConfig     `yaml:"jsonl"`
	Storage   StorageConfig   `yaml:"storage"`
}

// DatasetConfig configures the dataset download.
type DatasetConfig struct {
	Handle      string `yaml:"handle"`      // owner/name on Kaggle
	Credentials string `yaml:"credentials"` // kaggle.json to install
	KaggleDir   string `yaml:"kaggleDir"`   // where kaggle.json is installed; empty means ~/.kaggle
	CacheDir    string `yaml:"cacheDir"`    // where archives are downloaded and unpacked
	DataDir     string `yaml:"dataDir"`     // destination of the copied dataset
	SourceDir   string `yaml:"sourceDir"`   // dataset folder inside the archive
	SourceCSV   string `yaml:"sourceCsv"`   // metadata CSV inside the archive
}

// ExtractConfig configures copying the split folders.
type ExtractConfig struct {
	Source  string   `yaml:"source"`
	Dest    string   `yaml:"dest"`
	Folders []string `yaml:"folders"`
}

// StripConfig configures removal of annotated images from a copied tree.
type StripConfig struct {
	Source  string   `yaml:"source"`
	Dest    string   `yaml:"dest"`
	Folders []string `yaml:"folders"`
	Marker  string   `yaml:"marker"` // file names containing Marker are dropped
}

// CleanConfig lists intermediate folders to delete.
type CleanConfig struct {
	Folders []string `yaml:"folders"`
}

// OverlayConfig configures overlay generation from annotation masks.
type OverlayConfig struct {
	AnnotationDir string  `yaml:"annotationDir"`
	OutputDir     string  `yaml:"outputDir"`
	Threshold     int     `yaml:"threshold"`
	Color         string  `yaml:"color"`
	Thickness     float64 `yaml:"thickness"`
	Weight        float64 `yaml:"weight"` // overlay weight in the blend
}

// EllipseConfig configures ellipse parameter extraction.
type EllipseConfig struct {
	BaseDir       string   `yaml:"baseDir"`
	Categories    []string `yaml:"categories"`
	AnalysisDir   string   `yaml:"analysisDir"`
	ParametersCSV string   `yaml:"parametersCsv"`
	StatisticsCSV string   `yaml:"statisticsCsv"`
	BlockSize     int      `yaml:"blockSize"`
	C             float64  `yaml:"c"`
	Color         string   `yaml:"color"`
	Thickness     float64  `yaml:"thickness"`
	Extensions    []string `yaml:"extensions"`
}

// AnnotateConfig configures drawing metadata-derived ellipses.
type AnnotateConfig struct {
	BaseDir     string          `yaml:"baseDir"`
	DatasetsDir string          `yaml:"datasetsDir"`
	CSV         string          `yaml:"csv"` // relative to BaseDir
	OutputDir   string          `yaml:"outputDir"`
	Categories  []string        `yaml:"categories"`
	Colors      imaging.Palette `yaml:"colors"`
	Thickness   float64         `yaml:"thickness"`
	MinMajor    float64         `yaml:"minMajor"` // smallest horizontal semi-axis
	MinMinor    float64         `yaml:"minMinor"` // smallest vertical semi-axis
}

// CorrelateConfig configures matching overlay images to metadata rows.
type CorrelateConfig struct {
	PartitionedDir string   `yaml:"partitionedDir"`
	CSV            string   `yaml:"csv"`
	OutputDir      string   `yaml:"outputDir"`
	Splits         []string `yaml:"splits"`
	Categories     []string `yaml:"categories"`
}

// JSONLConfig configures the fine-tuning prompt file.
type JSONLConfig struct {
	Folder     string   `yaml:"folder"`
	BucketPath string   `yaml:"bucketPath"`
	Output     string   `yaml:"output"`
	Labels     []string `yaml:"labels"`
}

// StorageConfig configures bucket creation and uploads.
type StorageConfig struct {
	Project       string  `yaml:"project"`
	Bucket        string  `yaml:"bucket"`
	Location      string  `yaml:"location"`
	Parallelism   int     `yaml:"parallelism"`
	SourceFolder  string  `yaml:"sourceFolder"`
	JSONLFile     string  `yaml:"jsonlFile"`
	ScreenText    bool    `yaml:"screenText"`
	MinConfidence float64 `yaml:"minConfidence"`
	MinTextLength int     `yaml:"minTextLength"`
}

// Default returns the built-in configuration.
func Default() *Config {
	const fetus = "data/Ultrasound Fetus Dataset"
	return &Config{
		Dataset: DatasetConfig{
			Handle:      "orvile/ultrasound-fetus-dataset",
			Credentials: "kaggle.json",
			CacheDir:    ".cache/kaggle",
			DataDir:     "data",
			SourceDir:   "Ultrasound Fetus Dataset",
			SourceCSV:   "ultrasound_fetus.csv",
		},
		Extract: ExtractConfig{
			Source:  fetus + "/Ultrasound Fetus Dataset/Data/Data",
			Dest:    "clean-data",
			Folders: []string{"train", "validation", "test"},
		},
		Strip: StripConfig{
			Source:  "clean-data",
			Dest:    "clean-data-no-annotations",
			Folders: []string{"train", "validation", "test"},
			Marker:  "Annotation",
		},
		Clean: CleanConfig{
			Folders: []string{"clean-data", "data"},
		},
		Overlay: OverlayConfig{
			AnnotationDir: fetus + "/matched_dataset",
			OutputDir:     fetus + "/Overlays",
			Threshold:     127,
			Color:         "#00FF00",
			Thickness:     2,
			Weight:        0.7,
		},
		Ellipse: EllipseConfig{
			BaseDir:       fetus + "/OverlayedImages",
			Categories:    []string{"normal", "benign", "malignant"},
			AnalysisDir:   "mask_analysis",
			ParametersCSV: "ellipse_parameters.csv",
			StatisticsCSV: "ellipse_statistics.csv",
			BlockSize:     11,
			C:             2,
			Color:         "#00FF00",
			Thickness:     2,
			Extensions:    []string{".png", ".jpg", ".jpeg"},
		},
		Annotate: AnnotateConfig{
			BaseDir:     fetus + "/Ultrasound Fetus Dataset/Data/Data",
			DatasetsDir: "Datasets",
			CSV:         "FetusDataset.csv",
			OutputDir:   "data/annotated_images",
			Categories:  []string{"benign", "malignant", "normal"},
			Colors: imaging.Palette{
				"BENIGN":    "#00FF00",
				"MALIGNANT": "#FF0000",
				"NORMAL":    "#0000FF",
			},
			Thickness: 2,
			MinMajor:  20,
			MinMinor:  10,
		},
		Correlate: CorrelateConfig{
			PartitionedDir: fetus + "/PartitionedElipseOverlays",
			CSV:            fetus + "/FetusDataset.csv",
			OutputDir:      fetus + "/PartitionedMetadata",
			Splits:         []string{"train", "val", "test"},
			Categories:     []string{"normal", "benign", "malignant"},
		},
		JSONL: JSONLConfig{
			Folder:     "clean-data-no-annotations/validation",
			BucketPath: "gs://fetus-ultrasound-data/clean-data-no-annotations/validation",
			Output:     "validation-clean.jsonl",
			Labels:     []string{"Normal", "Benign", "Malignant"},
		},
		Storage: StorageConfig{
			Bucket:        "fetus-ultrasound-data",
			Location:      "US",
			Parallelism:   8,
			SourceFolder:  "clean-data-no-annotations",
			JSONLFile:     "validation-clean.jsonl",
			MinConfidence: 0.6,
			MinTextLength: 3,
		},
	}
}

// LoadConfig loads configuration from the specified YAML file.
// Keys missing from the file keep their default values.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}

	return config, nil
}

// Resolve picks the config file to load and loads it.
//
// The path comes from flagPath, then the CONFIG_PATH environment variable,
// then DefaultPath. Only an absent DefaultPath falls back to Default(); an
// explicitly named file must exist. The returned string is the file that was
// loaded, or empty when defaults were used.
func Resolve(flagPath string) (*Config, string, error) {
	path := flagPath
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		config, err := LoadConfig(path)
		if err != nil {
			return nil, "", err
		}
		return config, path, nil
	}

	config, err := LoadConfig(DefaultPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return config, DefaultPath, nil
}

// Validate checks the configuration for values no stage can work with.
func (c *Config) Validate() error {
	if err := validateCategories("ellipse.categories", c.Ellipse.Categories); err != nil {
		return err
	}
	if err := validateCategories("annotate.categories", c.Annotate.Categories); err != nil {
		return err
	}
	if err := validateCategories("correlate.categories", c.Correlate.Categories); err != nil {
		return err
	}
	if err := validateCategories("correlate.splits", c.Correlate.Splits); err != nil {
		return err
	}
	if err := validateCategories("jsonl.labels", c.JSONL.Labels); err != nil {
		return err
	}

	if c.Overlay.Weight < 0 || c.Overlay.Weight > 1 {
		return fmt.Errorf("overlay.weight %v must be within [0, 1]", c.Overlay.Weight)
	}
	if c.Overlay.Threshold < 0 || c.Overlay.Threshold > 255 {
		return fmt.Errorf("overlay.threshold %d must be within [0, 255]", c.Overlay.Threshold)
	}
	if c.Ellipse.BlockSize < 3 || c.Ellipse.BlockSize%2 == 0 {
		return fmt.Errorf("ellipse.blockSize %d must be odd and >= 3", c.Ellipse.BlockSize)
	}

	for name, hex := range map[string]string{"overlay.color": c.Overlay.Color, "ellipse.color": c.Ellipse.Color} {
		if _, err := imaging.ParseColor(hex); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if err := c.Annotate.Colors.Validate(); err != nil {
		return fmt.Errorf("annotate.colors: %w", err)
	}

	if c.Storage.Parallelism < 1 {
		return fmt.Errorf("storage.parallelism %d must be at least 1", c.Storage.Parallelism)
	}
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		return fmt.Errorf("storage.bucket must not be empty")
	}

	return nil
}

// validateCategories ensures a name list is non-empty and free of duplicates.
func validateCategories(field string, names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("%s must not be empty", field)
	}

	seen := make(map[string]bool)
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%s entry at index %d is empty", field, i)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return fmt.Errorf("duplicate %s entry: %s", field, name)
		}
		seen[key] = true
	}

	return nil
}
