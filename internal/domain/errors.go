package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyRecorded = errors.New("trade already recorded")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
)
