// Package match implements purchase-order matching of invoices against a
// reference table.
package match

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/core/stage"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

var errNilInvoice = errors.New("match: nil invoice")

type Matcher struct {
	table     *Table
	threshold float64
	logger    *slog.Logger
}

type Option func(*Matcher)

func WithThreshold(t float64) Option {
	return func(m *Matcher) {
		if t > 0 {
			m.threshold = t
		}
	}
}

func NewMatcher(table *Table, logger *slog.Logger, opts ...Option) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	if table == nil {
		table = &Table{}
	}
	m := &Matcher{table: table, threshold: constants.MatchThreshold, logger: logger}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match returns the best-scoring PO at or above the threshold. The first row
// with the maximum score wins.
func (m *Matcher) Match(ctx context.Context, rc *stage.RunContext, inv *entity.Invoice) (entity.MatchResult, error) {
	if err := ctx.Err(); err != nil {
		return entity.MatchResult{}, err
	}
	if inv == nil {
		return entity.MatchResult{}, errNilInvoice
	}
	log := m.logger
	if rc != nil {
		log = rc.Logger
	}
	start := time.Now()

	bestIdx, bestScore := -1, 0.0
	for i, row := range m.table.Rows {
		s := m.score(inv, row)
		if s >= m.threshold && s > bestScore {
			bestIdx, bestScore = i, s
		}
	}

	if bestIdx < 0 {
		log.Info("match.none", "vendor", inv.VendorName, "rows", len(m.table.Rows))
		return entity.MatchResult{Status: constants.MatchUnmatched, MatchConfidence: 0}, nil
	}
	po := m.table.Rows[bestIdx].PO
	log.Info("match.ok",
		"vendor", inv.VendorName,
		"po_number", po,
		"match_confidence", bestScore,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return entity.MatchResult{
		Status:          constants.MatchMatched,
		PONumber:        &po,
		MatchConfidence: entity.ClampConfidence(bestScore),
	}, nil
}

func (m *Matcher) score(inv *entity.Invoice, row Row) float64 {
	vendor := Similarity(inv.VendorName, row.Vendor)
	if !m.table.HasAmount || row.Amount == nil {
		return vendor
	}
	return constants.MatchVendorWeight*vendor + constants.MatchAmountWeight*AmountCloseness(inv.TotalAmount, *row.Amount)
}
