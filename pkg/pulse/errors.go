package pulse

import "errors"

var (
	ErrInvalidPin    = errors.New("invalid pin")
	ErrInvalidPeriod = errors.New("invalid expected period")
	ErrDuplicatePin  = errors.New("pin configured twice")
	ErrNotEnabled    = errors.New("pin not enabled")
)
