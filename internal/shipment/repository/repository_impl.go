package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	shipmentdomain "github.com/smallbiznis/clearline/internal/shipment/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) shipmentdomain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTrx(tx *gorm.DB) shipmentdomain.Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindShipment(ctx context.Context, orgID, shipmentID snowflake.ID) (*shipmentdomain.Shipment, error) {
	return r.findShipment(r.db.WithContext(ctx), orgID, shipmentID)
}

func (r *repository) FindShipmentForUpdate(ctx context.Context, orgID, shipmentID snowflake.ID) (*shipmentdomain.Shipment, error) {
	stmt := r.db.WithContext(ctx)
	if stmt.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.findShipment(stmt, orgID, shipmentID)
}

func (r *repository) findShipment(stmt *gorm.DB, orgID, shipmentID snowflake.ID) (*shipmentdomain.Shipment, error) {
	var shipment shipmentdomain.Shipment
	err := stmt.Where("org_id = ? AND id = ?", orgID, shipmentID).First(&shipment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &shipment, nil
}

func (r *repository) LoadShipmentGraph(ctx context.Context, orgID, shipmentID snowflake.ID) (*shipmentdomain.ShipmentGraph, error) {
	shipment, err := r.FindShipment(ctx, orgID, shipmentID)
	if err != nil || shipment == nil {
		return nil, err
	}

	var invoices []shipmentdomain.Invoice
	err = r.db.WithContext(ctx).Raw(
		`SELECT i.*
		 FROM invoices i
		 JOIN shipment_invoices si ON si.invoice_id = i.id AND si.org_id = i.org_id
		 WHERE si.org_id = ? AND si.shipment_id = ?
		 ORDER BY si.created_at ASC, i.id ASC`,
		orgID,
		shipmentID,
	).Scan(&invoices).Error
	if err != nil {
		return nil, err
	}

	graph := &shipmentdomain.ShipmentGraph{
		Shipment: *shipment,
		Invoices: make([]shipmentdomain.InvoiceWithItems, 0, len(invoices)),
	}
	for _, inv := range invoices {
		items, err := r.ListItems(ctx, orgID, inv.ID)
		if err != nil {
			return nil, err
		}
		graph.Invoices = append(graph.Invoices, shipmentdomain.InvoiceWithItems{Invoice: inv, Items: items})
	}
	return graph, nil
}

func (r *repository) LoadInvoice(ctx context.Context, orgID, invoiceID snowflake.ID) (*shipmentdomain.InvoiceWithItems, error) {
	var invoice shipmentdomain.Invoice
	err := r.db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, invoiceID).First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	items, err := r.ListItems(ctx, orgID, invoiceID)
	if err != nil {
		return nil, err
	}
	return &shipmentdomain.InvoiceWithItems{Invoice: invoice, Items: items}, nil
}

func (r *repository) ListItems(ctx context.Context, orgID, invoiceID snowflake.ID) ([]shipmentdomain.InvoiceLineItem, error) {
	var items []shipmentdomain.InvoiceLineItem
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND invoice_id = ?", orgID, invoiceID).
		Order("line_number ASC, id ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) ListShipmentInvoices(ctx context.Context, orgID, shipmentID snowflake.ID) ([]shipmentdomain.ShipmentInvoice, error) {
	var rows []shipmentdomain.ShipmentInvoice
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND shipment_id = ?", orgID, shipmentID).
		Order("created_at ASC, invoice_id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) UpdateShipmentTotals(ctx context.Context, shipment *shipmentdomain.Shipment) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE shipments
		 SET fob_total = ?, insurance_total = ?, cif_total = ?, recalculated_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		shipment.FOBTotal,
		shipment.InsuranceTotal,
		shipment.CIFTotal,
		shipment.RecalculatedAt,
		shipment.UpdatedAt,
		shipment.OrgID,
		shipment.ID,
	).Error
}

func (r *repository) SaveShares(ctx context.Context, shares []shipmentdomain.ShipmentInvoice) error {
	for _, share := range shares {
		err := r.db.WithContext(ctx).Exec(
			`UPDATE shipment_invoices
			 SET fob_amount = ?, prorated_freight = ?, prorated_insurance = ?, updated_at = ?
			 WHERE org_id = ? AND shipment_id = ? AND invoice_id = ?`,
			share.FOBAmount,
			share.ProratedFreight,
			share.ProratedInsurance,
			share.UpdatedAt,
			share.OrgID,
			share.ShipmentID,
			share.InvoiceID,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}
