package validate

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// DefaultHistorySize is the number of past invoices kept for anomaly checks.
const DefaultHistorySize = 1000

type historyEntry struct {
	number string
	total  decimal.Decimal
}

// History is a bounded ring buffer of previously validated invoices.
// It is safe for concurrent use.
type History struct {
	mu      sync.Mutex
	entries []historyEntry
	next    int
	full    bool
}

func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{entries: make([]historyEntry, size)}
}

// Len reports how many invoices are currently retained.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lenLocked()
}

func (h *History) lenLocked() int {
	if h.full {
		return len(h.entries)
	}
	return h.next
}

// Check compares inv against the retained invoices and then records it.
// The returned map holds "duplicate" and/or "total_amount" entries.
func (h *History) Check(inv *entity.Invoice) map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()

	found := map[string]string{}
	n := h.lenLocked()

	if inv.InvoiceNumber != "" {
		for i := 0; i < n; i++ {
			if h.entries[i].number == inv.InvoiceNumber {
				found["duplicate"] = fmt.Sprintf("Duplicate invoice number: %s", inv.InvoiceNumber)
				break
			}
		}
	}

	totals := make([]decimal.Decimal, 0, n)
	for i := 0; i < n; i++ {
		if !h.entries[i].total.IsZero() {
			totals = append(totals, h.entries[i].total)
		}
	}
	if len(totals) > 0 {
		sort.Slice(totals, func(a, b int) bool { return totals[a].LessThan(totals[b]) })
		median := totals[len(totals)/2]
		two := decimal.NewFromInt(2)
		half := decimal.NewFromFloat(0.5)
		cur := inv.TotalAmount
		if cur.GreaterThan(median.Mul(two)) || cur.LessThan(median.Mul(half)) {
			found[entity.FieldTotalAmount] = fmt.Sprintf("Unusual total: %s (median: %s)", cur.String(), median.String())
		}
	}

	h.entries[h.next] = historyEntry{number: inv.InvoiceNumber, total: inv.TotalAmount}
	h.next = (h.next + 1) % len(h.entries)
	if h.next == 0 {
		h.full = true
	}
	return found
}
