package entity

import "errors"

var (
	ErrValidation             = errors.New("validation failed")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrPaymentIntentMismatch  = errors.New("payment intent mismatch")
	ErrConflict               = errors.New("conflict")
	ErrNotFound               = errors.New("not found")
)
