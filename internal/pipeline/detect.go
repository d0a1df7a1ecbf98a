package pipeline

import (
	"regexp"
	"strings"
)

type DetectResult struct {
	IsInvoice bool
	Score     float64
	Reason    string
}

var detectKeywords = []string{"invoice", "order", "receipt", "shipping", "vat", "total", "sku"}

var rePoundAmount = regexp.MustCompile(`£\s*\d+(\.\d+)?`)

// DetectInvoice scores whether a supplier e-mail carries an invoice.
func DetectInvoice(subject, text, html string, attachmentNames []string) DetectResult {
	subject = strings.ToLower(subject)
	text = strings.ToLower(text)
	html = strings.ToLower(html)

	score := 0.0
	for _, kw := range detectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.2
		}
		if strings.Contains(text, kw) || strings.Contains(html, kw) {
			score += 0.1
		}
	}

	amounts := len(rePoundAmount.FindAllString(text, -1)) + len(rePoundAmount.FindAllString(html, -1))
	if amounts >= 2 {
		score += 0.3
	} else if amounts == 1 {
		score += 0.15
	}

	for _, name := range attachmentNames {
		if strings.HasSuffix(strings.ToLower(name), ".pdf") {
			score += 0.3
			break
		}
	}

	if strings.Contains(html, "<table") {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}

	isInvoice := score >= 0.45
	reason := "rules_negative"
	if isInvoice {
		reason = "rules_positive"
	}

	return DetectResult{IsInvoice: isInvoice, Score: score, Reason: reason}
}
