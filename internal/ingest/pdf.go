package ingest

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/shopspring/decimal"

	"github.com/Miglio04/OREKA-BACKEND/internal/domain"
)

// ExtractPDFText pulls the plain text and page count out of a PDF invoice.
func ExtractPDFText(data []byte) (string, int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", 0, fmt.Errorf("extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", 0, fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), reader.NumPage(), nil
}

var (
	invoiceNumberPattern = regexp.MustCompile(`(?i)(?:invoice|factur[ae]?|rechnung)\s*#?\s*:?\s*([A-Z0-9\-]+)`)
	invoiceDatePattern   = regexp.MustCompile(`(?i)(?:date|datum|fecha)\s*:?\s*(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})`)
	invoiceTotalPattern  = regexp.MustCompile(`(?i)(?:total|gesamt|summe|montant)\s*:?\s*([€$£]?\s*\d+[,.]?\d*)`)
	invoiceCompanyPattern = regexp.MustCompile(`(?m)(?:^|\n)([A-Z][A-Za-z\s&.,]+(?:GmbH|Ltd|Inc|Corp|SA|SL))`)
)

// PatternExtract scrapes common invoice fields out of raw PDF text. It is
// the fallback used when no language-model service is configured.
func PatternExtract(text string) *domain.InvoiceExtraction {
	info := &domain.InvoiceExtraction{Source: domain.ExtractionSourcePattern}

	if m := invoiceNumberPattern.FindStringSubmatch(text); m != nil {
		info.InvoiceNumber = m[1]
	}
	if m := invoiceDatePattern.FindStringSubmatch(text); m != nil {
		info.Date = m[1]
	}
	if m := invoiceTotalPattern.FindStringSubmatch(text); m != nil {
		if amount, err := parseAmount(m[1]); err == nil {
			info.AmountDue = decimal.NullDecimal{Decimal: amount, Valid: true}
		}
	}
	if m := invoiceCompanyPattern.FindStringSubmatch(text); m != nil {
		info.Company = strings.TrimSpace(m[1])
	}
	return info
}
