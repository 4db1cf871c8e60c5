package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/jdkato/prose/v2"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// Extractor turns uploaded file bytes into the text context injected into
// model conversations. Output is capped at a character budget so one huge
// document cannot crowd out the conversation itself.
type Extractor struct {
	logger   *zap.Logger
	maxChars int
}

func New(logger *zap.Logger, maxChars int) *Extractor {
	return &Extractor{logger: logger, maxChars: maxChars}
}

// PDFText extracts all text content from a PDF.
// Returns the text with page markers for context, truncated to the budget.
func (e *Extractor) PDFText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var fullText strings.Builder
	totalPages := r.NumPage()

	e.logger.Debug("Extracting text from PDF", zap.Int("pages", totalPages))

	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			e.logger.Warn("Skipping null page",
				zap.Int("page", pageNum))
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Warn("Failed to extract text from page",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}

		text = detectTablesInText(text)

		// Add page marker for context
		fullText.WriteString(fmt.Sprintf("--- Page %d ---\n", pageNum))
		fullText.WriteString(text)
		fullText.WriteString("\n\n")
	}

	extractedText := fullText.String()
	e.logger.Info("PDF text extraction completed",
		zap.Int("pages", totalPages),
		zap.Int("characters", len(extractedText)))

	return e.Truncate(extractedText), nil
}

// PlainText normalizes an uploaded text file and applies the budget.
func (e *Extractor) PlainText(data []byte) string {
	return e.Truncate(strings.TrimSpace(string(data)))
}

const truncationMarker = "\n\n[... Content truncated at sentence boundary ...]"

// Truncate cuts text down to the character budget at a sentence boundary.
// Falls back to a hard cut when no complete sentence fits or segmentation
// fails.
func (e *Extractor) Truncate(text string) string {
	if e.maxChars <= 0 || len(text) <= e.maxChars {
		return text
	}

	doc, err := prose.NewDocument(text)
	if err != nil {
		e.logger.Warn("Failed to create prose document for sentence detection, truncating at character boundary", zap.Error(err))
		return text[:e.maxChars] + truncationMarker
	}

	sentences := doc.Sentences()
	if len(sentences) == 0 {
		return text[:e.maxChars] + truncationMarker
	}

	var result strings.Builder
	included := 0
	for _, sent := range sentences {
		if result.Len()+len(sent.Text)+1 > e.maxChars {
			break
		}
		result.WriteString(sent.Text)
		result.WriteString(" ")
		included++
	}

	if result.Len() == 0 {
		return text[:e.maxChars] + truncationMarker
	}

	e.logger.Info("Truncated at sentence boundary",
		zap.Int("sentences_included", included),
		zap.Int("total_sentences", len(sentences)),
		zap.Int("characters", result.Len()))

	return strings.TrimSpace(result.String()) + truncationMarker
}

var tablePattern = regexp.MustCompile(`\s{3,}|\t+`)

// detectTablesInText applies heuristic table detection to mark tabular regions
func detectTablesInText(text string) string {
	// Pattern: multiple lines with aligned columns (3+ spaces or tabs between words)
	// Look for at least 3 consecutive lines with similar spacing patterns
	lines := strings.Split(text, "\n")
	var result strings.Builder

	inTable := false
	tableLines := 0

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if inTable {
				result.WriteString("[/TABLE]\n")
				inTable = false
				tableLines = 0
			}
			result.WriteString(line + "\n")
			continue
		}

		matches := tablePattern.FindAllString(line, -1)
		hasColumns := len(matches) >= 2

		if hasColumns {
			tableLines++
			if tableLines >= 3 && !inTable {
				result.WriteString("[TABLE DETECTED]\n")
				inTable = true
			}
			result.WriteString(line + "\n")
		} else {
			if inTable && tableLines >= 3 {
				result.WriteString("[/TABLE]\n")
				inTable = false
			}
			tableLines = 0
			result.WriteString(line + "\n")
		}
	}

	// Close table if we ended mid-table
	if inTable {
		result.WriteString("[/TABLE]\n")
	}

	return result.String()
}
