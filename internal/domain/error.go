package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Research jobs
	ErrDispatchFailed = errors.New("worker dispatch failed")
	ErrStaleState     = errors.New("job state changed concurrently")

	// Credits
	ErrQuotaExceeded    = errors.New("daily credit quota exceeded")
	ErrUnknownOperation = errors.New("unknown chargeable operation")

	// Auth
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInactiveAPIKey = errors.New("api key is inactive")

	// Storage plumbing
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
