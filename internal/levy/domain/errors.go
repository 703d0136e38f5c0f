package domain

import "errors"

var (
	ErrInvalidCountry       = errors.New("invalid_country")
	ErrInvalidCode          = errors.New("invalid_levy_code")
	ErrInvalidName          = errors.New("invalid_levy_name")
	ErrInvalidRate          = errors.New("invalid_levy_rate")
	ErrInvalidRateType      = errors.New("invalid_rate_type")
	ErrInvalidBasis         = errors.New("invalid_basis")
	ErrInvalidApplicability = errors.New("invalid_applicability")
	ErrInvalidWindow        = errors.New("invalid_effective_window")
	ErrLevyNotFound         = errors.New("levy_not_found")
	ErrLevyCodeTaken        = errors.New("levy_code_taken")
)
