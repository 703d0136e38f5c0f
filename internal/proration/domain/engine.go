// Package domain allocates shipment-level freight and insurance across invoices
// and their line items in proportion to declared value.
//
// Nothing here rounds. Callers round to money.Places when persisting or
// reporting so repeated recalculation never compounds rounding error.
package domain

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/clearline/internal/money"
	shipmentdomain "github.com/smallbiznis/clearline/internal/shipment/domain"
)

// Header carries the shipping fields entered on a shipment or standalone invoice.
type Header struct {
	Freight             decimal.Decimal
	InsuranceMode       shipmentdomain.InsuranceMode
	InsuranceTotal      decimal.Decimal
	InsurancePercentage decimal.Decimal
}

type Totals struct {
	FOB       decimal.Decimal
	Freight   decimal.Decimal
	Insurance decimal.Decimal
	CIF       decimal.Decimal
}

// ComputeTotals derives insurance per mode and CIF = FOB + freight + insurance.
func ComputeTotals(fob decimal.Decimal, h Header) Totals {
	insurance := h.InsuranceTotal
	if h.InsuranceMode == shipmentdomain.InsuranceModePercentage {
		insurance = money.Percent(fob, h.InsurancePercentage)
	}
	return Totals{
		FOB:       fob,
		Freight:   h.Freight,
		Insurance: insurance,
		CIF:       fob.Add(h.Freight).Add(insurance),
	}
}

type InvoiceInput struct {
	InvoiceID snowflake.ID
	FOB       decimal.Decimal
}

type InvoiceShare struct {
	InvoiceID snowflake.ID
	FOB       decimal.Decimal
	Ratio     decimal.Decimal
	Freight   decimal.Decimal
	Insurance decimal.Decimal
}

func (s InvoiceShare) CIF() decimal.Decimal {
	return s.FOB.Add(s.Freight).Add(s.Insurance)
}

// ProrateShipment splits freight and insurance by invoice.fob / totals.FOB.
// A zero FOB total yields zero ratios.
func ProrateShipment(t Totals, invoices []InvoiceInput) []InvoiceShare {
	shares := make([]InvoiceShare, 0, len(invoices))
	for _, inv := range invoices {
		ratio := money.Ratio(inv.FOB, t.FOB)
		shares = append(shares, InvoiceShare{
			InvoiceID: inv.InvoiceID,
			FOB:       inv.FOB,
			Ratio:     ratio,
			Freight:   t.Freight.Mul(ratio),
			Insurance: t.Insurance.Mul(ratio),
		})
	}
	return shares
}

type ItemInput struct {
	ItemID    snowflake.ID
	LineTotal decimal.Decimal
}

type ItemShare struct {
	ItemID    snowflake.ID
	FOB       decimal.Decimal
	Ratio     decimal.Decimal
	Freight   decimal.Decimal
	Insurance decimal.Decimal
}

func (s ItemShare) CIF() decimal.Decimal {
	return s.FOB.Add(s.Freight).Add(s.Insurance)
}

// ProrateInvoice splits an invoice's share across its items by line_total / invoice FOB.
func ProrateInvoice(share InvoiceShare, items []ItemInput) []ItemShare {
	out := make([]ItemShare, 0, len(items))
	for _, item := range items {
		ratio := money.Ratio(item.LineTotal, share.FOB)
		out = append(out, ItemShare{
			ItemID:    item.ItemID,
			FOB:       item.LineTotal,
			Ratio:     ratio,
			Freight:   share.Freight.Mul(ratio),
			Insurance: share.Insurance.Mul(ratio),
		})
	}
	return out
}

// InvoiceInputs builds proration inputs from a shipment's member invoices.
func InvoiceInputs(invoices []shipmentdomain.InvoiceWithItems) ([]InvoiceInput, decimal.Decimal) {
	inputs := make([]InvoiceInput, 0, len(invoices))
	total := decimal.Zero
	for _, inv := range invoices {
		fob := inv.FOB()
		total = total.Add(fob)
		inputs = append(inputs, InvoiceInput{InvoiceID: inv.Invoice.ID, FOB: fob})
	}
	return inputs, total
}

// ItemInputs builds proration inputs from an invoice's line items.
func ItemInputs(items []shipmentdomain.InvoiceLineItem) []ItemInput {
	inputs := make([]ItemInput, 0, len(items))
	for _, item := range items {
		inputs = append(inputs, ItemInput{ItemID: item.ID, LineTotal: item.Total()})
	}
	return inputs
}

// HeaderFromShipment reads the shipping fields of a shipment.
func HeaderFromShipment(s shipmentdomain.Shipment) Header {
	return Header{
		Freight:             s.FreightTotal,
		InsuranceMode:       s.InsuranceMode,
		InsuranceTotal:      s.InsuranceTotal,
		InsurancePercentage: s.InsurancePercentage,
	}
}

// HeaderFromInvoice treats a standalone invoice's own freight and insurance as given.
func HeaderFromInvoice(inv shipmentdomain.Invoice) Header {
	return Header{
		Freight:        inv.FreightAmount,
		InsuranceMode:  shipmentdomain.InsuranceModeDocument,
		InsuranceTotal: inv.InsuranceAmount,
	}
}
