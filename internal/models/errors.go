package models

import "errors"

// Custom errors
var (
	ErrValidation       = errors.New("invalid request parameters")
	ErrNotFound         = errors.New("record not found")
	ErrDuplicateKey     = errors.New("duplicate key violation")
	ErrDispatch         = errors.New("failed to dispatch request")
	ErrDataUnavailable  = errors.New("no market data for symbol and window")
	ErrEvaluationFailed = errors.New("all candidate strategies failed")
	ErrBrokerFatal      = errors.New("fatal broker error")
)
