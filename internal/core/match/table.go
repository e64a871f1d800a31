package match

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
)

// Reference table column headers.
const (
	ColumnVendor = "Vendor Name"
	ColumnPO     = "Approved PO List"
	ColumnAmount = "Amount"
)

// Row is one approved purchase order.
type Row struct {
	Vendor string
	PO     string
	Amount *decimal.Decimal
}

// Table is the PO reference data. HasAmount is set when the source carried an
// amount column.
type Table struct {
	Source    string
	Rows      []Row
	HasAmount bool
}

// LoadTable reads a .csv or .xlsx PO table. Missing vendor or PO columns
// yield a *common.DataLoadError.
func LoadTable(path string) (*Table, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		records, err = readXLSX(path)
	case ".csv", "":
		records, err = readCSV(path)
	default:
		return nil, &common.DataLoadError{Source: path, Cause: fmt.Errorf("unsupported table format %q", filepath.Ext(path))}
	}
	if err != nil {
		return nil, &common.DataLoadError{Source: path, Cause: err}
	}
	return buildTable(path, records)
}

// ParseTable builds a table from CSV content.
func ParseTable(source string, r io.Reader) (*Table, error) {
	records, err := newCSVReader(r).ReadAll()
	if err != nil {
		return nil, &common.DataLoadError{Source: source, Cause: err}
	}
	return buildTable(source, records)
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return newCSVReader(f).ReadAll()
}

// newCSVReader accepts ragged rows and spaces after commas.
func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

func buildTable(source string, records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, &common.DataLoadError{Source: source, Missing: []string{ColumnVendor, ColumnPO}}
	}
	idx := map[string]int{}
	for i, h := range records[0] {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	col := func(name string) (int, bool) {
		i, ok := idx[strings.ToLower(name)]
		return i, ok
	}

	vi, okV := col(ColumnVendor)
	pi, okP := col(ColumnPO)
	var missing []string
	if !okV {
		missing = append(missing, ColumnVendor)
	}
	if !okP {
		missing = append(missing, ColumnPO)
	}
	if len(missing) > 0 {
		return nil, &common.DataLoadError{Source: source, Missing: missing}
	}
	ai, hasAmount := col(ColumnAmount)

	cell := func(rec []string, i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	t := &Table{Source: source, HasAmount: hasAmount}
	for _, rec := range records[1:] {
		vendor, po := cell(rec, vi), cell(rec, pi)
		if vendor == "" && po == "" {
			continue
		}
		row := Row{Vendor: vendor, PO: po}
		if hasAmount {
			if d, err := decimal.NewFromString(strings.ReplaceAll(cell(rec, ai), ",", "")); err == nil {
				row.Amount = &d
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
