package parser

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/orderflow/core/pkg/orders"
	orderrs "github.com/orderflow/core/pkg/shared/errors"
)

// MaxFileBytes is the too_large cutoff: a spreadsheet larger than this
// is refused before excelize ever opens it.
const MaxFileBytes = 20 * 1024 * 1024

// Config tunes the deterministic pass: the PARSER_FORMULA_POLICY
// and ARITHMETIC_TOLERANCE_RATIO.
type Config struct {
	// FormulaPolicy is "strict" (any formula blocks the file) or
	// "compute" (the cell's cached computed value is trusted and parsing
	// continues, recording HadFormulas on the resulting Metadata).
	FormulaPolicy string
	// ArithmeticToleranceRatio is the fraction of the declared subtotal
	// within which the summed line totals must fall before an
	// arithmetic_mismatch Issue is raised.
	ArithmeticToleranceRatio float64
}

// ExcelParser extracts a CanonicalOrder from a single-sheet xlsx
// workbook using a fixed column-header heuristic. Header detection, cell
// normalization, and locale heuristics are intentionally shallow — the
// system only depends on this collaborator's output contract.
type ExcelParser struct {
	cfg Config
}

func NewExcelParser(cfg Config) *ExcelParser {
	return &ExcelParser{cfg: cfg}
}

var headerAliases = map[string][]string{
	"description": {"description", "item", "product"},
	"quantity":    {"qty", "quantity"},
	"unit_price":  {"unit price", "price", "unitprice"},
	"line_total":  {"total", "line total", "amount"},
	"sku":         {"sku", "item code", "item id"},
	"gtin":        {"gtin", "barcode", "upc", "ean"},
}

func (p *ExcelParser) Parse(ctx context.Context, fileBytes []byte, filename string) (orders.CanonicalOrder, error) {
	if len(fileBytes) > MaxFileBytes {
		return orders.CanonicalOrder{}, &BlockedError{Reason: BlockedReasonTooLarge}
	}

	sum := sha256.Sum256(fileBytes)

	f, err := excelize.OpenReader(bytes.NewReader(fileBytes))
	if err != nil {
		if strings.Contains(err.Error(), "password") || strings.Contains(err.Error(), "encrypt") {
			return orders.CanonicalOrder{}, &BlockedError{Reason: BlockedReasonProtected}
		}
		return orders.CanonicalOrder{}, &BlockedError{Reason: BlockedReasonUnparsable}
	}
	defer f.Close() //nolint:errcheck

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return orders.CanonicalOrder{}, &BlockedError{Reason: BlockedReasonUnparsable}
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet)
	if err != nil || len(rows) == 0 {
		return orders.CanonicalOrder{}, &BlockedError{Reason: BlockedReasonUnparsable}
	}

	headerRow, columns := locateHeader(rows)
	if columns["description"] < 0 || columns["quantity"] < 0 {
		return orders.CanonicalOrder{}, &BlockedError{Reason: BlockedReasonUnparsable}
	}

	hadFormulas := false
	if formulaic, err := sheetHasFormulas(f, sheet, rows); err == nil && formulaic {
		hadFormulas = true
		if p.formulaPolicy() == "strict" {
			return orders.CanonicalOrder{}, &BlockedError{Reason: BlockedReasonFormulas}
		}
	}

	order := orders.CanonicalOrder{
		Version: 1,
		Metadata: orders.Metadata{
			SourceFilename: filename,
			SHA256:         hex.EncodeToString(sum[:]),
			LanguageHint:   "en",
			ParserVersion:  "excel-v1",
			HadFormulas:    hadFormulas,
		},
		Customer: locateCustomer(sheet, rows),
	}

	var issues []orders.Issue
	var lineSum float64
	lineNumber := 0
	for r := headerRow + 1; r < len(rows); r++ {
		row := rows[r]
		if allBlank(row) {
			continue
		}
		desc := cellAt(row, columns["description"])
		if strings.TrimSpace(desc) == "" {
			continue
		}
		if label := strings.ToLower(strings.TrimSpace(desc)); label == "subtotal" || label == "total" {
			continue
		}
		lineNumber++

		qtyRaw := cellAt(row, columns["quantity"])
		qty, qtyErr := strconv.ParseFloat(strings.TrimSpace(qtyRaw), 64)
		if qtyErr != nil {
			issues = append(issues, orders.Issue{
				Code:            string(orderrs.CodeUnparsableQuantity),
				Severity:        orders.SeverityError,
				Message:         "quantity cell did not parse as a number: " + qtyRaw,
				Evidence:        cellEvidence(sheet, r, columns["quantity"], rows),
				NeedsHumanInput: true,
			})
		}

		line := orders.LineItem{
			LineNumber:          lineNumber,
			Description:         desc,
			Quantity:            qty,
			SKU:                 cellAt(row, columns["sku"]),
			GTIN:                cellAt(row, columns["gtin"]),
			DescriptionEvidence: evidenceAt(sheet, r, columns["description"], rows),
			QuantityEvidence:    evidenceAt(sheet, r, columns["quantity"], rows),
		}
		if columns["unit_price"] >= 0 {
			if raw := cellAt(row, columns["unit_price"]); raw != "" {
				if price, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
					line.UnitPrice = &price
					ev := evidenceAt(sheet, r, columns["unit_price"], rows)
					line.UnitPriceEvidence = &ev
				}
			}
		}
		if columns["line_total"] >= 0 {
			if raw := cellAt(row, columns["line_total"]); raw != "" {
				if total, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
					line.LineTotal = &total
					lineSum += total
				}
			}
		} else if line.UnitPrice != nil {
			lineSum += qty * *line.UnitPrice
		}
		if !line.HasIdentifier() {
			issues = append(issues, orders.Issue{
				Code:            string(orderrs.CodeMissingItemID),
				Severity:        orders.SeverityWarning,
				Message:         "line has neither SKU nor GTIN",
				Evidence:        &line.DescriptionEvidence,
				NeedsHumanInput: false,
			})
		}
		order.LineItems = append(order.LineItems, line)
	}

	if subtotal, ok := locateDeclaredSubtotal(rows, columns); ok {
		order.Totals.DeclaredSubtotal = &subtotal
		tolerance := math.Max(subtotal*p.toleranceRatio(), 0.01)
		if math.Abs(lineSum-subtotal) > tolerance {
			issues = append(issues, orders.Issue{
				Code:     string(orderrs.CodeArithmeticMismatch),
				Severity: orders.SeverityWarning,
				Message:  "sum of line totals does not match the declared subtotal within tolerance",
			})
		}
	}

	order.Issues = issues
	return order, nil
}

func (p *ExcelParser) formulaPolicy() string {
	if p.cfg.FormulaPolicy == "" {
		return "strict"
	}
	return p.cfg.FormulaPolicy
}

func (p *ExcelParser) toleranceRatio() float64 {
	if p.cfg.ArithmeticToleranceRatio <= 0 {
		return 0.005
	}
	return p.cfg.ArithmeticToleranceRatio
}

func locateHeader(rows [][]string) (int, map[string]int) {
	for r, row := range rows {
		matches := matchHeaderRow(row)
		if matches["description"] >= 0 && matches["quantity"] >= 0 {
			return r, matches
		}
	}
	return 0, map[string]int{"description": -1, "quantity": -1, "unit_price": -1, "line_total": -1, "sku": -1, "gtin": -1}
}

func matchHeaderRow(row []string) map[string]int {
	out := map[string]int{"description": -1, "quantity": -1, "unit_price": -1, "line_total": -1, "sku": -1, "gtin": -1}
	for i, cell := range row {
		norm := strings.ToLower(strings.TrimSpace(cell))
		for field, aliases := range headerAliases {
			for _, alias := range aliases {
				if norm == alias {
					out[field] = i
				}
			}
		}
	}
	return out
}

func locateCustomer(sheet string, rows [][]string) orders.CustomerBlock {
	for r, row := range rows {
		for c, cell := range row {
			norm := strings.ToLower(strings.TrimSpace(cell))
			if norm == "customer" || norm == "customer:" || norm == "bill to" || norm == "sold to" {
				if c+1 < len(row) && strings.TrimSpace(row[c+1]) != "" {
					return orders.CustomerBlock{
						FreeText: strings.TrimSpace(row[c+1]),
						Evidence: evidenceAt(sheet, r, c+1, rows),
					}
				}
			}
		}
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		return orders.CustomerBlock{FreeText: strings.TrimSpace(rows[0][0]), Evidence: evidenceAt(sheet, 0, 0, rows)}
	}
	return orders.CustomerBlock{}
}

func locateDeclaredSubtotal(rows [][]string, columns map[string]int) (float64, bool) {
	for _, row := range rows {
		for c, cell := range row {
			norm := strings.ToLower(strings.TrimSpace(cell))
			if norm == "subtotal" || norm == "total" {
				if c+1 < len(row) {
					if v, err := strconv.ParseFloat(strings.TrimSpace(row[c+1]), 64); err == nil {
						return v, true
					}
				}
			}
		}
	}
	return 0, false
}

func sheetHasFormulas(f *excelize.File, sheet string, rows [][]string) (bool, error) {
	for r := range rows {
		for c := range rows[r] {
			addr, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				continue
			}
			formula, err := f.GetCellFormula(sheet, addr)
			if err != nil {
				continue
			}
			if formula != "" {
				return true, nil
			}
		}
	}
	return false, nil
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func evidenceAt(sheet string, r, c int, rows [][]string) orders.EvidenceCell {
	addr, _ := excelize.CoordinatesToCellName(c+1, r+1)
	raw := cellAt(rows[r], c)
	return orders.EvidenceCell{Sheet: sheet, Address: addr, Raw: raw, Display: raw}
}

func cellEvidence(sheet string, r, c int, rows [][]string) *orders.EvidenceCell {
	ev := evidenceAt(sheet, r, c, rows)
	return &ev
}

func allBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
