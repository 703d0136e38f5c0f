// Package export renders a duty breakdown as an XLSX workbook for brokers.
package export

import (
	"fmt"

	"github.com/shopspring/decimal"
	dutydomain "github.com/smallbiznis/clearline/internal/duty/domain"
	"github.com/xuri/excelize/v2"
)

const (
	SheetSummary = "Summary"
	SheetGroups  = "Tariff Groups"
	SheetLevies  = "Levies"
	SheetItems   = "Items"
)

// Workbook returns the XLSX bytes for res. reference labels the summary sheet.
func Workbook(reference string, res *dutydomain.Result) ([]byte, error) {
	if res == nil {
		return nil, fmt.Errorf("export: nil result")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, err
	}
	for _, name := range []string{SheetGroups, SheetLevies, SheetItems} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	amount, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, err
	}

	w := writer{f: f, header: header, amount: amount}
	w.summary(reference, res)
	w.groups(res.Groups)
	w.levies(res.Levies)
	w.items(res.Items)
	if w.err != nil {
		return nil, w.err
	}

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writer keeps the first error so sheet builders read straight through.
type writer struct {
	f      *excelize.File
	header int
	amount int
	err    error
}

func (w *writer) row(sheet string, row int, values ...any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetSheetRow(sheet, cell, &values)
}

func (w *writer) style(sheet string, fromCol, toCol, fromRow, toRow, style int) {
	if w.err != nil || toRow < fromRow {
		return
	}
	from, err := excelize.CoordinatesToCellName(fromCol, fromRow)
	if err != nil {
		w.err = err
		return
	}
	to, err := excelize.CoordinatesToCellName(toCol, toRow)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetCellStyle(sheet, from, to, style)
}

func (w *writer) headerRow(sheet string, titles ...any) {
	w.row(sheet, 1, titles...)
	w.style(sheet, 1, len(titles), 1, 1, w.header)
	if w.err == nil {
		last, _ := excelize.ColumnNumberToName(len(titles))
		w.err = w.f.SetColWidth(sheet, "A", last, 18)
	}
}

func (w *writer) summary(reference string, res *dutydomain.Result) {
	rows := [][]any{
		{"Reference", reference},
		{"Country", res.CountryCode},
		{"Calculated at", res.CalculatedAt.UTC().Format("2006-01-02 15:04:05")},
		{"FOB", num(res.FOBTotal)},
		{"Freight", num(res.FreightTotal)},
		{"Insurance", num(res.InsuranceTotal)},
		{"CIF", num(res.CIFTotal)},
		{"Customs duty", num(res.CustomsDutyTotal)},
		{"Wharfage", num(res.WharfageTotal)},
		{"Other levies", num(res.OtherLeviesTotal)},
		{"Levies total", num(res.LeviesTotal)},
		{"Total payable", num(res.TotalPayable)},
	}
	for i, r := range rows {
		w.row(SheetSummary, i+1, r...)
	}
	w.style(SheetSummary, 1, 1, 1, len(rows), w.header)
	w.style(SheetSummary, 2, 2, 4, len(rows), w.amount)
	for i, warning := range res.Warnings {
		w.row(SheetSummary, len(rows)+2+i, "Warning", warning)
	}
	if w.err == nil {
		w.err = w.f.SetColWidth(SheetSummary, "A", "B", 24)
	}
}

func (w *writer) groups(groups []dutydomain.TariffGroup) {
	w.headerRow(SheetGroups, "Tariff code", "Description", "Items", "CIF", "Duty")
	for i, g := range groups {
		w.row(SheetGroups, i+2, deref(g.TariffCode, "UNCLASSIFIED"), deref(g.Description, ""), g.ItemCount, num(g.CIF), num(g.Duty))
	}
	w.style(SheetGroups, 4, 5, 2, len(groups)+1, w.amount)
}

func (w *writer) levies(levies []dutydomain.LevyLine) {
	w.headerRow(SheetLevies, "Code", "Name", "Rate type", "Basis", "Rate", "Basis value", "Amount")
	for i, l := range levies {
		w.row(SheetLevies, i+2, l.Code, l.Name, l.RateType, l.Basis, num(l.Rate), num(l.BasisValue), num(l.Amount))
	}
	w.style(SheetLevies, 6, 7, 2, len(levies)+1, w.amount)
}

func (w *writer) items(items []dutydomain.ItemDetail) {
	w.headerRow(SheetItems, "Invoice", "Line", "Description", "Tariff code", "Quantity", "FOB", "Freight", "Insurance", "CIF", "Duty rate", "Rate source", "Duty")
	for i, it := range items {
		w.row(SheetItems, i+2,
			it.InvoiceID.String(), it.LineNumber, it.Description, deref(it.TariffCode, ""), num(it.Quantity),
			num(it.FOB), num(it.Freight), num(it.Insurance), num(it.CIF), num(it.DutyRate), string(it.RateSource), num(it.Duty),
		)
	}
	w.style(SheetItems, 6, 9, 2, len(items)+1, w.amount)
	w.style(SheetItems, 12, 12, 2, len(items)+1, w.amount)
}

func num(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func deref(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
