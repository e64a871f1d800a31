package extract

import (
	"github.com/shopspring/decimal"
)

// NormalizeAmount strips everything except digits and '.', then parses the
// remainder. A '.' not followed by a digit is punctuation ("Rs. 500", "12.")
// and is dropped. ok is false when nothing parseable is left.
func NormalizeAmount(s string) (decimal.Decimal, bool) {
	in := []rune(s)
	out := make([]rune, 0, len(in))
	for i, r := range in {
		switch {
		case r >= '0' && r <= '9':
			out = append(out, r)
		case r == '.' && i+1 < len(in) && in[i+1] >= '0' && in[i+1] <= '9':
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(string(out))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
