package types

import "errors"

// Error taxonomy shared by stages and handlers.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUpstream     = errors.New("upstream failure")
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
)

// ErrDownload is an upstream failure where the expected audio file never appeared.
var ErrDownload = &downloadError{}

type downloadError struct{}

func (*downloadError) Error() string        { return "audio download failed" }
func (*downloadError) Is(target error) bool { return target == ErrUpstream }
