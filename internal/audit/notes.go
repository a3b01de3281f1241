package audit

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// SettlementSummary carries the counts and fees summarised on a settlement entry.
type SettlementSummary struct {
	Returned     int
	Partial      int
	Missing      int
	Outstanding  int
	Damaged      int
	DamageTotal  decimal.Decimal
	LateFee      decimal.Decimal
	TotalAmount  decimal.Decimal
	LateReturned bool
}

// Notes formats human readable timeline notes for one locale.
type Notes struct {
	printer *message.Printer
}

// NewNotes builds a formatter. An unparsable tag falls back to English.
func NewNotes(locale string) *Notes {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Notes{printer: message.NewPrinter(tag)}
}

// Settlement summarises a settlement batch in one line.
func (n *Notes) Settlement(s SettlementSummary) string {
	var b strings.Builder
	b.WriteString(n.printer.Sprintf("returned %d, partial %d, missing %d, outstanding %d", s.Returned, s.Partial, s.Missing, s.Outstanding))
	if s.Damaged > 0 {
		b.WriteString(n.printer.Sprintf("; damaged %d (fees %s)", s.Damaged, n.amount(s.DamageTotal)))
	}
	if s.LateFee.IsPositive() {
		b.WriteString(n.printer.Sprintf("; late fee %s", n.amount(s.LateFee)))
	}
	if s.LateReturned {
		b.WriteString("; returned late")
	}
	b.WriteString(n.printer.Sprintf("; total %s", n.amount(s.TotalAmount)))
	return b.String()
}

// Expired describes a sweeper cancellation.
func (n *Notes) Expired(minutesLate int64) string {
	return n.printer.Sprintf("booking expired %d minutes after scheduled start", minutesLate)
}

func (n *Notes) amount(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return n.printer.Sprintf("%.2f", f)
}
