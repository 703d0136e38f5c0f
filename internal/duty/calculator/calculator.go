// Package calculator turns a consignment, its classifications and a country's
// reference data into a duty and levy breakdown. It performs no I/O.
package calculator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	dutydomain "github.com/smallbiznis/clearline/internal/duty/domain"
	levydomain "github.com/smallbiznis/clearline/internal/levy/domain"
	"github.com/smallbiznis/clearline/internal/levy/rules"
	"github.com/smallbiznis/clearline/internal/money"
	prorationdomain "github.com/smallbiznis/clearline/internal/proration/domain"
	shipmentdomain "github.com/smallbiznis/clearline/internal/shipment/domain"
	tariffdomain "github.com/smallbiznis/clearline/internal/tariff/domain"
)

// Classification is the authoritative tariff data for one invoice item,
// taken from the declaration item it is matched to.
type Classification struct {
	TariffCode *string
	DutyRate   decimal.NullDecimal
}

type Input struct {
	CountryCode   string
	ConsigneeType string
	At            time.Time

	Header      prorationdomain.Header
	GrossWeight decimal.Decimal
	Invoices    []shipmentdomain.InvoiceWithItems

	// Classifications is keyed by invoice item ID.
	Classifications map[snowflake.ID]Classification
	Tariffs         tariffdomain.Table
	Levies          []levydomain.CountryLevy
	WharfageCode    string
}

// row keeps unrounded per-item values until aggregation.
type row struct {
	invoiceID   snowflake.ID
	item        shipmentdomain.InvoiceLineItem
	code        *string
	description *string
	share       prorationdomain.ItemShare
	rate        decimal.Decimal
	source      dutydomain.RateSource
	duty        decimal.Decimal
}

// Calculate never fails: unresolved classification yields zero duty and a
// warning, and levies that cannot be evaluated are skipped with a warning.
func Calculate(in Input) dutydomain.Result {
	inputs, fob := prorationdomain.InvoiceInputs(in.Invoices)
	totals := prorationdomain.ComputeTotals(fob, in.Header)
	shares := prorationdomain.ProrateShipment(totals, inputs)

	warnings := []string{}
	rows := make([]row, 0)
	dutyTotal := decimal.Zero
	quantity := decimal.Zero
	for i, share := range shares {
		invoice := in.Invoices[i]
		itemShares := prorationdomain.ProrateInvoice(share, prorationdomain.ItemInputs(invoice.Items))
		for j, item := range invoice.Items {
			r := resolve(in, invoice.Invoice.ID, item, itemShares[j])
			if w := warningFor(r); w != "" {
				warnings = append(warnings, w)
			}
			rows = append(rows, r)
			dutyTotal = dutyTotal.Add(r.duty)
			quantity = quantity.Add(item.Quantity)
		}
	}

	full := rules.Basis{
		FOB:      totals.FOB,
		CIF:      totals.CIF,
		Duty:     dutyTotal,
		Quantity: quantity,
		Weight:   in.GrossWeight,
	}
	levies, levyWarnings := usableLevies(in.Levies)
	warnings = append(warnings, levyWarnings...)

	levyResult, err := rules.EvaluateScoped(levies, rules.Subject{At: in.At, ConsigneeType: in.ConsigneeType}, func(levy levydomain.CountryLevy) (rules.Basis, bool) {
		if !rules.Restricted(levy) {
			return full, true
		}
		return scopedBasis(levy, rows, totals.FOB, in.GrossWeight)
	})
	if err != nil {
		warnings = append(warnings, err.Error())
		levyResult = rules.Result{Lines: []rules.Line{}, Total: decimal.Zero}
	}

	wharfage := decimal.Zero
	levyLines := make([]dutydomain.LevyLine, 0, len(levyResult.Lines))
	for _, l := range levyResult.Lines {
		if in.WharfageCode != "" && strings.EqualFold(l.Code, in.WharfageCode) {
			wharfage = wharfage.Add(l.Amount)
		}
		levyLines = append(levyLines, dutydomain.LevyLine{
			Code:       l.Code,
			Name:       l.Name,
			RateType:   string(l.RateType),
			Basis:      string(l.Basis),
			Rate:       l.Rate,
			BasisValue: money.Round(l.BasisValue),
			Amount:     money.Round(l.Amount),
		})
	}

	customsDuty := money.Round(dutyTotal)
	leviesTotal := money.Round(levyResult.Total)
	wharfageTotal := money.Round(wharfage)

	return dutydomain.Result{
		CountryCode:      tariffdomain.NormalizeCountry(in.CountryCode),
		FOBTotal:         money.Round(totals.FOB),
		FreightTotal:     money.Round(totals.Freight),
		InsuranceTotal:   money.Round(totals.Insurance),
		CIFTotal:         money.Round(totals.CIF),
		CustomsDutyTotal: customsDuty,
		LeviesTotal:      leviesTotal,
		WharfageTotal:    wharfageTotal,
		OtherLeviesTotal: leviesTotal.Sub(wharfageTotal),
		TotalPayable:     customsDuty.Add(leviesTotal),
		TotalQuantity:    quantity,
		GrossWeight:      in.GrossWeight,
		Groups:           groups(rows),
		Levies:           levyLines,
		Items:            details(rows),
		Warnings:         warnings,
		CalculatedAt:     in.At,
	}
}

// resolve applies rate precedence: a rate recorded by classification, then a
// rate pre-assigned on the invoice item, then the tariff table.
func resolve(in Input, invoiceID snowflake.ID, item shipmentdomain.InvoiceLineItem, share prorationdomain.ItemShare) row {
	r := row{
		invoiceID: invoiceID,
		item:      item,
		share:     share,
		rate:      decimal.Zero,
		source:    dutydomain.RateSourceUnresolved,
		duty:      decimal.Zero,
	}

	classification, classified := in.Classifications[item.ID]
	switch {
	case classified && nonEmpty(classification.TariffCode):
		r.code = normalized(classification.TariffCode)
	case nonEmpty(item.TariffCodeHint):
		r.code = normalized(item.TariffCodeHint)
	}

	var tariff tariffdomain.TariffRate
	var inTable bool
	if r.code != nil {
		tariff, inTable = in.Tariffs.Resolve(*r.code)
		if inTable && tariff.Description != "" {
			desc := tariff.Description
			r.description = &desc
		}
	}

	switch {
	case classified && classification.DutyRate.Valid:
		r.rate, r.source = classification.DutyRate.Decimal, dutydomain.RateSourceRecorded
	case item.DutyRate.Valid:
		r.rate, r.source = item.DutyRate.Decimal, dutydomain.RateSourceRecorded
	case inTable:
		r.rate, r.source = tariff.DutyRate, dutydomain.RateSourceTariffTable
	}

	if r.source != dutydomain.RateSourceUnresolved {
		r.duty = money.Percent(share.CIF(), r.rate)
	}
	return r
}

func warningFor(r row) string {
	switch {
	case r.source != dutydomain.RateSourceUnresolved:
		return ""
	case r.code == nil:
		return fmt.Sprintf("item %s: no tariff code", r.item.ID)
	default:
		return fmt.Sprintf("item %s: no duty rate for tariff code %s", r.item.ID, *r.code)
	}
}

func usableLevies(levies []levydomain.CountryLevy) ([]levydomain.CountryLevy, []string) {
	usable := make([]levydomain.CountryLevy, 0, len(levies))
	var warnings []string
	for _, levy := range levies {
		if !levy.RateType.Valid() || !levy.Basis.Valid() {
			warnings = append(warnings, fmt.Sprintf("levy %s: invalid rate type %q or basis %q", levy.Code, levy.RateType, levy.Basis))
			continue
		}
		usable = append(usable, levy)
	}
	return usable, warnings
}

// scopedBasis aggregates the basis over the items a restricted levy covers.
// Weight is apportioned by the covered share of FOB.
func scopedBasis(levy levydomain.CountryLevy, rows []row, totalFOB, grossWeight decimal.Decimal) (rules.Basis, bool) {
	var basis rules.Basis
	covered := 0
	for _, r := range rows {
		if !rules.AppliesToCode(levy, r.code) {
			continue
		}
		covered++
		basis = basis.Add(rules.Basis{
			FOB:      r.share.FOB,
			CIF:      r.share.CIF(),
			Duty:     r.duty,
			Quantity: r.item.Quantity,
		})
	}
	if covered == 0 {
		return rules.Basis{}, false
	}
	basis.Weight = grossWeight.Mul(money.Ratio(basis.FOB, totalFOB))
	return basis, true
}

func groups(rows []row) []dutydomain.TariffGroup {
	type acc struct {
		code        *string
		description *string
		count       int
		cif         decimal.Decimal
		duty        decimal.Decimal
	}
	byCode := map[string]*acc{}
	var unresolved *acc
	for _, r := range rows {
		var g *acc
		if r.source == dutydomain.RateSourceUnresolved || r.code == nil {
			if unresolved == nil {
				unresolved = &acc{cif: decimal.Zero, duty: decimal.Zero}
			}
			g = unresolved
		} else {
			g = byCode[*r.code]
			if g == nil {
				code := *r.code
				g = &acc{code: &code, description: r.description, cif: decimal.Zero, duty: decimal.Zero}
				byCode[code] = g
			}
		}
		g.count++
		g.cif = g.cif.Add(r.share.CIF())
		g.duty = g.duty.Add(r.duty)
	}

	codes := make([]string, 0, len(byCode))
	for code := range byCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	out := make([]dutydomain.TariffGroup, 0, len(codes)+1)
	for _, code := range codes {
		g := byCode[code]
		out = append(out, dutydomain.TariffGroup{TariffCode: g.code, Description: g.description, ItemCount: g.count, CIF: money.Round(g.cif), Duty: money.Round(g.duty)})
	}
	if unresolved != nil {
		out = append(out, dutydomain.TariffGroup{ItemCount: unresolved.count, CIF: money.Round(unresolved.cif), Duty: money.Round(unresolved.duty)})
	}
	return out
}

func details(rows []row) []dutydomain.ItemDetail {
	out := make([]dutydomain.ItemDetail, 0, len(rows))
	for _, r := range rows {
		out = append(out, dutydomain.ItemDetail{
			InvoiceID:   r.invoiceID,
			ItemID:      r.item.ID,
			LineNumber:  r.item.LineNumber,
			Description: r.item.Description,
			TariffCode:  r.code,
			Quantity:    r.item.Quantity,
			FOB:         money.Round(r.share.FOB),
			Freight:     money.Round(r.share.Freight),
			Insurance:   money.Round(r.share.Insurance),
			CIF:         money.Round(r.share.CIF()),
			DutyRate:    r.rate,
			RateSource:  r.source,
			Duty:        money.Round(r.duty),
		})
	}
	return out
}

func nonEmpty(s *string) bool {
	return s != nil && tariffdomain.NormalizeCode(*s) != ""
}

func normalized(s *string) *string {
	code := tariffdomain.NormalizeCode(*s)
	return &code
}
