// Package ocr screens ultrasound frames for burned-in text using Tesseract.
//
// This package wraps the Tesseract OCR engine (via gosseract/v2). Scanner
// exports often stamp patient names, dates or machine settings into the pixel
// data; the upload stage uses a Screener to leave such frames out of the
// published dataset.
//
// # Prerequisites
//
// Tesseract must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr
//   - macOS: brew install tesseract
//
// Language data files are required for each language:
//   - Ubuntu/Debian: apt-get install tesseract-ocr-eng (for English)
//
// # Functions
//
//   - ExtractText: Full-image OCR, returns all text with word bounding boxes
//   - BurnedInWords: Filters OCR words by confidence and length
//   - Screener.Keep: Upload filter that rejects frames with burned-in text
//
// # Error Handling
//
// If bounding box extraction fails (e.g., Tesseract version mismatch),
// ExtractText still returns the extracted text with an empty Regions slice.
// Screener.Keep treats OCR failures as clean frames.
package ocr
