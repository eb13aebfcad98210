package models

import "errors"

// Custom errors
var (
	ErrNotFound           = errors.New("record not found")
	ErrDuplicateKey       = errors.New("duplicate key violation")
	ErrInvalidCombo       = errors.New("invalid combination")
	ErrSettlementConflict = errors.New("settlement conflicts with previously recorded outcome")
)
