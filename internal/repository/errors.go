package repository

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidPeriod = errors.New("invalid period")
	ErrBadReorder    = errors.New("reorder list does not match playlist items")
)
