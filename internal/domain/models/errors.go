package models

import "errors"

var (
	ErrNotFound           = errors.New("recommendation not found")
	ErrAlreadyDecided     = errors.New("recommendation already decided")
	ErrBusy               = errors.New("recommendation is being updated")
	ErrHistoryUnavailable = errors.New("recommendation history is not configured")
)
