package domain

import "errors"

// Validation errors. They block an action before anything is sent.
var (
	ErrInvalidAmount  = errors.New("amount must be greater than 0")
	ErrInvalidFees    = errors.New("fees must not be negative")
	ErrInvalidPatch   = errors.New("invalid settings patch")
	ErrInvalidURL     = errors.New("invalid url")
	ErrMissingAddress = errors.New("token address is required")
	ErrMissingField   = errors.New("required field is missing")
	ErrUnknownDomain  = errors.New("unknown settings domain")
	ErrUnknownList    = errors.New("unknown admin list")
	ErrUnknownMode    = errors.New("unknown propagation mode")
)
