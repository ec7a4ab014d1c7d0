// Package prompt builds the JSON Lines tuning file that pairs each uploaded
// image with its diagnostic label.
package prompt

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ironsheep/ultrasound-prep/internal/dataset"
)

// DiagnosticPrompt is the user instruction sent alongside every image.
const DiagnosticPrompt = `You are a diagnostic medical AI trained in fetal neuroimaging.

Analyze the provided fetal brain ultrasound image and classify it as one of the following:
– Normal
– Benign
– Malignant

Base your classification on the following medically relevant criteria:

    Symmetry and Morphology
    – Are the brain hemispheres symmetric?
    – Is the midline intact or shifted?
    – Are sulci, gyri, and ventricles normal in size and shape for gestational age?

    Lesions or Masses
    – Are there any focal lesions or space-occupying masses?
    – Is there evidence of calcification, cystic regions, or hemorrhage?

    Ventricular System
    – Is there ventriculomegaly, hydrocephalus, or other abnormal dilation?
    – Are choroid plexuses normal and symmetric?

    Tissue Integrity
    – Are there areas of hyperechogenicity or hypoechogenicity suggesting necrosis or inflammation?

    Mass Effect or Deformation
    – Is there compression or displacement of normal brain structures?
    – Are adjacent tissues affected by any lesion?

    Gestational Appropriateness
    – Do all visible structures appear appropriate for the estimated gestational age?


Return your analysis as one word, either: normal, benign, malignant`

// MimeTypePNG is the MIME type declared for every image reference.
const MimeTypePNG = "image/png"

// Example is one tuning record: a user turn holding the image and prompt, and a
// model turn holding the label.
type Example struct {
	Contents []Content `json:"contents"`
}

// Content is a single conversation turn.
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Part is either a file reference or text.
type Part struct {
	FileData *FileData `json:"fileData,omitempty"`
	Text     string    `json:"text,omitempty"`
}

// FileData references an object in the bucket.
type FileData struct {
	MimeType string `json:"mimeType"`
	FileURI  string `json:"fileUri"`
}

// NewExample builds the record for imagePath, a path relative to the bucket
// prefix such as "Benign/12_HC.png".
func NewExample(imagePath, label, bucketPath string) Example {
	uri := strings.TrimRight(bucketPath, "/") + "/" + filepath.ToSlash(imagePath)
	return Example{
		Contents: []Content{
			{
				Role: "user",
				Parts: []Part{
					{FileData: &FileData{MimeType: MimeTypePNG, FileURI: uri}},
					{Text: DiagnosticPrompt},
				},
			},
			{
				Role:  "model",
				Parts: []Part{{Text: label}},
			},
		},
	}
}

// Generate builds one example per PNG in folder/<label>, labels in the given
// order and files in natural order. Missing label folders are skipped.
func Generate(folder, bucketPath string, labels []string) ([]Example, error) {
	examples := make([]Example, 0)

	for _, label := range labels {
		labelPath := filepath.Join(folder, label)
		info, err := os.Stat(labelPath)
		if err != nil || !info.IsDir() {
			slog.Debug("label folder not found", "path", labelPath)
			continue
		}

		names, err := dataset.ListImages(labelPath, []string{".png"})
		if err != nil {
			return nil, err
		}
		dataset.NaturalSort(names)

		for _, name := range names {
			examples = append(examples, NewExample(label+"/"+name, label, bucketPath))
		}
	}

	return examples, nil
}

// WriteJSONL writes one compact JSON object per line.
func WriteJSONL(path string, examples []Example) error {
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

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i, ex := range examples {
		// Encode terminates each value with a newline.
		if err := enc.Encode(ex); err != nil {
			return fmt.Errorf("failed to encode example %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
