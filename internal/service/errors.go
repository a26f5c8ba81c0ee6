package service

import "errors"

var (
	// ErrNetworkNotFound is returned for an unknown network id
	ErrNetworkNotFound = errors.New("network not found")
	// ErrRunNotFound is returned for a run that is not active
	ErrRunNotFound = errors.New("run not found")
	// ErrInvalidNetwork wraps every GeoJSON import validation failure
	ErrInvalidNetwork = errors.New("invalid network")
	// ErrJobNotFound is returned for an unknown job id
	ErrJobNotFound = errors.New("job not found")
	// ErrJobNotActive is returned when cancelling a job that already ended
	ErrJobNotActive = errors.New("job is not active")
)
