package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository reads and writes the shipment graph. Every call is scoped to orgID.
type Repository interface {
	WithTrx(tx *gorm.DB) Repository

	FindShipment(ctx context.Context, orgID, shipmentID snowflake.ID) (*Shipment, error)
	FindShipmentForUpdate(ctx context.Context, orgID, shipmentID snowflake.ID) (*Shipment, error)
	LoadShipmentGraph(ctx context.Context, orgID, shipmentID snowflake.ID) (*ShipmentGraph, error)
	LoadInvoice(ctx context.Context, orgID, invoiceID snowflake.ID) (*InvoiceWithItems, error)
	ListItems(ctx context.Context, orgID, invoiceID snowflake.ID) ([]InvoiceLineItem, error)
	ListShipmentInvoices(ctx context.Context, orgID, shipmentID snowflake.ID) ([]ShipmentInvoice, error)

	UpdateShipmentTotals(ctx context.Context, shipment *Shipment) error
	SaveShares(ctx context.Context, shares []ShipmentInvoice) error
}
