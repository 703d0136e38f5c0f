package domain

import "errors"

var (
	ErrDeclarationNotFound = errors.New("declaration_not_found")
	ErrDeclarationUnlinked = errors.New("declaration_unlinked")
)
