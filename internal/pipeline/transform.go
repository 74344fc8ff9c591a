package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/MbInteligen/mbras-c2s-enrichment/internal/money"
)

// IncomeAdjustmentFactor is a fixed business constant: reported income is
// always multiplied by 1.9. Its semantics are not specified by the
// enrichment service itself (see the Open Question decision in
// DESIGN.md) — it is applied unconditionally, as directed.
const IncomeAdjustmentFactor = 19 // numerator over a denominator of 10

// transformDate converts a DD/MM/YYYY date string to YYYY-MM-DD. Input
// that doesn't parse is returned unchanged so the pipeline degrades
// gracefully rather than dropping the field.
func transformDate(raw string) string {
	t, err := time.Parse("02/01/2006", strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	return t.Format("2006-01-02")
}

// transformSex converts a "X - WORD" label into its first character,
// uppercased.
func transformSex(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, "-", 2)
	first := strings.TrimSpace(parts[0])
	if first == "" {
		return ""
	}
	return strings.ToUpper(first[:1])
}

// transformIncome parses a comma-decimal reported income and applies the
// 1.9x domain adjustment, never touching a float for the stored value.
func transformIncome(raw string) (money.Amount, error) {
	amount, err := money.ParseBRL(raw)
	if err != nil {
		return money.Amount{}, fmt.Errorf("parse reported income: %w", err)
	}
	return amount.MulRat(IncomeAdjustmentFactor, 10), nil
}

var riskLabelScore = map[string]float64{
	"VERY_LOW":  0.1,
	"LOW":       0.3,
	"MEDIUM":    0.5,
	"HIGH":      0.7,
	"VERY_HIGH": 0.9,
}

// transformRisk maps a coarse risk label to its numeric score. Unknown
// labels yield 0 and ok=false so callers can decide whether to omit the
// field.
func transformRisk(label string) (score float64, ok bool) {
	score, ok = riskLabelScore[strings.ToUpper(strings.TrimSpace(label))]
	return score, ok
}
