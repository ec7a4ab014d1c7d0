package ocr

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/otiai10/gosseract/v2"
)

// Bounds represents a rectangular bounding box in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// TextRegion represents a word with its location and OCR confidence.
type TextRegion struct {
	// Text is the recognized text content.
	Text string `json:"text"`

	// Confidence is the OCR confidence score (0.0 to 1.0).
	Confidence float64 `json:"confidence"`

	// Bounds is the bounding box around this text in the image.
	Bounds Bounds `json:"bounds"`
}

// OCRResult contains the complete results of text extraction from an image.
type OCRResult struct {
	// FullText is all recognized text as a single string with original spacing/newlines.
	FullText string `json:"full_text"`

	// Regions contains individual words with their bounding boxes and confidence scores.
	// May be empty if bounding box extraction fails (text will still be in FullText).
	Regions []TextRegion `json:"regions"`
}

// ExtractText performs OCR on an entire image file and returns recognized text.
//
// Parameters:
//   - imagePath: Path to the image file. Supports PNG, JPEG, TIFF, BMP.
//   - language: Tesseract language code (e.g., "eng" for English). The corresponding
//     language data must be installed on the system.
//
// Returns:
//   - *OCRResult: Contains FullText (complete recognized text) and Regions
//     (individual words with bounding boxes and confidence).
//   - error: Non-nil if the image cannot be loaded or OCR fails.
//
// # Error Handling
//
// If word-level bounding box extraction fails (which can happen with some
// Tesseract configurations), the function still returns the full text in
// FullText with an empty Regions slice.
func ExtractText(imagePath string, language string) (*OCRResult, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}

	if err := client.SetImage(imagePath); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	// Get bounding boxes for words
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return &OCRResult{
			FullText: text,
			Regions:  []TextRegion{},
		}, nil
	}

	regions := make([]TextRegion, 0, len(boxes))
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		regions = append(regions, TextRegion{
			Text:       box.Word,
			Confidence: float64(box.Confidence) / 100.0,
			Bounds: Bounds{
				X1: box.Box.Min.X,
				Y1: box.Box.Min.Y,
				X2: box.Box.Max.X,
				Y2: box.Box.Max.Y,
			},
		})
	}

	return &OCRResult{
		FullText: text,
		Regions:  regions,
	}, nil
}

// Screener flags images that carry burned-in text such as patient labels,
// scanner settings or caliper annotations.
type Screener struct {
	Language      string  // Tesseract language code
	MinConfidence float64 // minimum word confidence (0.0 to 1.0)
	MinLength     int     // minimum count of letters and digits in a word
}

// NewScreener returns a Screener for English text.
func NewScreener(minConfidence float64, minLength int) *Screener {
	return &Screener{
		Language:      "eng",
		MinConfidence: minConfidence,
		MinLength:     minLength,
	}
}

// Screen runs OCR on imagePath and returns the words that count as burned-in
// text. An empty result means the image looks clean.
func (s *Screener) Screen(imagePath string) ([]TextRegion, error) {
	result, err := ExtractText(imagePath, s.Language)
	if err != nil {
		return nil, err
	}
	return BurnedInWords(result.Regions, s.MinConfidence, s.MinLength), nil
}

// Keep reports whether imagePath is free of burned-in text. Images that cannot
// be screened are kept and logged, so an OCR failure never drops data.
func (s *Screener) Keep(imagePath string) bool {
	words, err := s.Screen(imagePath)
	if err != nil {
		slog.Warn("text screen failed, keeping image", "path", imagePath, "error", err)
		return true
	}
	if len(words) > 0 {
		texts := make([]string, len(words))
		for i, w := range words {
			texts[i] = w.Text
		}
		slog.Info("skipping image with burned-in text", "path", imagePath, "words", strings.Join(texts, " "))
		return false
	}
	return true
}

// BurnedInWords filters OCR regions down to confident words of at least
// minLength letters or digits. Speckle in ultrasound frames regularly OCRs as
// short low-confidence fragments, which this discards.
func BurnedInWords(regions []TextRegion, minConfidence float64, minLength int) []TextRegion {
	words := make([]TextRegion, 0)
	for _, r := range regions {
		if r.Confidence < minConfidence {
			continue
		}
		if alphanumericCount(r.Text) < minLength {
			continue
		}
		words = append(words, r)
	}
	return words
}

func alphanumericCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
