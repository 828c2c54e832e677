package service

import "errors"

// Errors returned by the application services.
var (
	ErrClientClosed         = errors.New("linefit: client is closed")
	ErrAllJobsFailed        = errors.New("every sweep job failed")
	ErrOptimizerUnavailable = errors.New("optimizer not configured")
	ErrNoFitStore           = errors.New("fit database not configured")
)
