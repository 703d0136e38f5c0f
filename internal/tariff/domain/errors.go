package domain

import "errors"

var (
	ErrInvalidCountry  = errors.New("invalid_country")
	ErrInvalidCode     = errors.New("invalid_tariff_code")
	ErrInvalidDutyRate = errors.New("invalid_duty_rate")
)
