package production

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInsufficientQuantity = errors.New("count exceeds remaining quantity")
	ErrInvalidCount         = errors.New("count must be positive")
	ErrIdleAlreadyOpen      = errors.New("line already idle")
	ErrInvalidIdle          = errors.New("unknown idle type or reason")
	ErrInvalidPhone         = errors.New("invalid phone")
	ErrInvalidRate          = errors.New("invalid rate")
	ErrInvalidName          = errors.New("invalid name")
	ErrDuplicatePhone       = errors.New("phone already registered")
	ErrPlanExists           = errors.New("plan already exists for date")
)
