package match

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"
)

// Similarity is a case-insensitive, token-order-insensitive ratio in [0,1].
func Similarity(a, b string) float64 {
	na, nb := tokenSort(a), tokenSort(b)
	if na == "" && nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	la, lb := len([]rune(na)), len([]rune(nb))
	longest := la
	if lb > longest {
		longest = lb
	}
	d := levenshtein.ComputeDistance(na, nb)
	return 1 - float64(d)/float64(longest)
}

func tokenSort(s string) string {
	tokens := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

var cent = decimal.New(1, -2)

// AmountCloseness is 1 when a and b are within a cent and decays linearly with
// their relative difference, reaching 0 at 100%.
func AmountCloseness(a, b decimal.Decimal) float64 {
	diff := a.Sub(b).Abs()
	if diff.LessThanOrEqual(cent) {
		return 1
	}
	larger := decimal.Max(a.Abs(), b.Abs())
	if larger.IsZero() {
		return 0
	}
	rel, _ := diff.Div(larger).Float64()
	if rel >= 1 {
		return 0
	}
	return 1 - rel
}
