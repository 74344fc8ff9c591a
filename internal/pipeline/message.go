package pipeline

import (
	"fmt"
	"strings"

	"github.com/MbInteligen/mbras-c2s-enrichment/providers/deepenrich"
)

// EnrichedProfile is one tax_id's fully transformed enrichment result,
// ready for message composition and persistence.
type EnrichedProfile struct {
	TaxID          string
	Name           string
	BirthDate      string
	Sex            string
	ReportedIncome string // decimal string, already 1.9x-adjusted
	RiskScore      float64
	RiskKnown      bool
	Addresses      []deepenrich.AddressRecord
	Contacts       []deepenrich.ContactRecord
	Companies      []deepenrich.CompanyAssociation
	Raw            []byte
}

// ComposeMessage builds the single multi-section CRM message body from
// one or more enriched profiles, prepending the same-person / two-
// identifier bracket headers, and clamps the result to maxLen characters
// without ever splitting a multibyte rune.
func ComposeMessage(profiles []EnrichedProfile, samePerson, twoIdentifiers bool, maxLen int) string {
	var b strings.Builder

	if samePerson {
		b.WriteString("[\U0001F4DE\U0001F4E7 Same person]\n")
	}
	if twoIdentifiers {
		b.WriteString("[⚠ Two identifiers]\n")
	}

	for i, p := range profiles {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		writeProfileSections(&b, p)
	}

	return truncateRunes(b.String(), maxLen)
}

func writeProfileSections(b *strings.Builder, p EnrichedProfile) {
	fmt.Fprintf(b, "Identidade\nNome: %s\nCPF: %s\n", p.Name, p.TaxID)
	if p.BirthDate != "" {
		fmt.Fprintf(b, "Nascimento: %s\n", p.BirthDate)
	}
	if p.Sex != "" {
		fmt.Fprintf(b, "Sexo: %s\n", p.Sex)
	}

	b.WriteString("\nResumo financeiro\n")
	if p.ReportedIncome != "" {
		fmt.Fprintf(b, "Renda declarada: R$ %s\n", p.ReportedIncome)
	}
	if p.RiskKnown {
		fmt.Fprintf(b, "Score de crédito: %.1f\n", p.RiskScore)
	}

	if len(p.Addresses) > 0 {
		b.WriteString("\nEnderecos\n")
		for i, a := range p.Addresses {
			tag := ""
			if i == 0 {
				tag = " (principal)"
			}
			fmt.Fprintf(b, "- %s, %s - %s/%s%s\n", a.Street, a.Number, a.City, a.State, tag)
		}
	}

	if len(p.Contacts) > 0 {
		b.WriteString("\nContatos\n")
		for _, c := range p.Contacts {
			fmt.Fprintf(b, "- %s: %s\n", c.Type, c.Value)
		}
	}

	if len(p.Companies) > 0 {
		b.WriteString("\nVinculos empresariais\n")
		for _, c := range p.Companies {
			fmt.Fprintf(b, "- %s (%s)\n", c.Name, c.Role)
		}
	}
}

// truncateRunes clamps s to at most maxLen Unicode scalar values,
// guaranteeing the result is never cut mid-multibyte character.
func truncateRunes(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
