package currency

import (
	"fmt"
	"strconv"
	"strings"
)

const DefaultCode = "USD"

type symbolSpec struct {
	symbol   string
	decimals int
}

var symbols = map[string]symbolSpec{
	"USD": {"$", 2},
	"CAD": {"CA$", 2},
	"AUD": {"A$", 2},
	"NZD": {"NZ$", 2},
	"EUR": {"€", 2},
	"GBP": {"£", 2},
	"JPY": {"¥", 0},
	"KRW": {"₩", 0},
	"INR": {"₹", 2},
	"BRL": {"R$", 2},
	"IDR": {"Rp", 0},
	"CHF": {"CHF ", 2},
}

// Formatter renders money amounts for chat replies.
type Formatter interface {
	Format(amount float64, code string) string
}

// SymbolFormatter prefixes a currency symbol and groups thousands with commas.
type SymbolFormatter struct {
	defaultCode string
}

func NewFormatter(defaultCode string) *SymbolFormatter {
	code := strings.ToUpper(strings.TrimSpace(defaultCode))
	if code == "" {
		code = DefaultCode
	}
	return &SymbolFormatter{defaultCode: code}
}

// DefaultCode is the currency used when an amount carries no code.
func (f *SymbolFormatter) DefaultCode() string {
	return f.defaultCode
}

func (f *SymbolFormatter) Format(amount float64, code string) string {
	if amount < 0 {
		return "-" + f.Format(-amount, code)
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = f.defaultCode
	}
	spec, ok := symbols[code]
	if !ok {
		return fmt.Sprintf("%s %s", code, groupThousands(amount, 2))
	}
	return spec.symbol + groupThousands(amount, spec.decimals)
}

// Symbol returns the display prefix for code, or the code itself when unknown.
func Symbol(code string) string {
	if spec, ok := symbols[strings.ToUpper(code)]; ok {
		return strings.TrimSpace(spec.symbol)
	}
	return strings.ToUpper(code)
}

func groupThousands(amount float64, decimals int) string {
	s := strconv.FormatFloat(amount, 'f', decimals, 64)

	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(frac)
	return b.String()
}
