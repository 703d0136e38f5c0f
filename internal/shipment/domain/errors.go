package domain

import "errors"

var (
	ErrShipmentNotFound = errors.New("shipment_not_found")
	ErrInvoiceNotFound  = errors.New("invoice_not_found")
	ErrInvalidShipment  = errors.New("invalid_shipment")
)
