package domain

import "errors"

var ErrRecalculationInProgress = errors.New("recalculation_in_progress")
