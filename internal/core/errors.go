package core

import "errors"

// Sentinel errors of the service layer. The route layer translates these to
// HTTP status codes with errors.Is; anything unrecognized becomes a 500.
var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("invalid credentials")
	ErrConflict         = errors.New("conflict")
	ErrCalibrationParse = errors.New("malformed calibration response")
	ErrUpstream         = errors.New("upstream gateway unavailable")
)
