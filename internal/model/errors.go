package model

import "errors"

var (
	ErrWeightAndRateRequired = errors.New("weight and rate are required")
	ErrInvalidDate           = errors.New("invalid date format")
	ErrNotANumber            = errors.New("weight and rate must be numbers")
)
