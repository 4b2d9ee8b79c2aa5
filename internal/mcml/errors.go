package mcml

import "errors"

var (
	ErrNoPhotons     = errors.New("photon count must be positive")
	ErrManyPhotons   = errors.New("photon count exceeds the budget counter range")
	ErrNoLayers      = errors.New("at least one layer is required")
	ErrTooManyLayers = errors.New("too many layers")
	ErrBadLayer      = errors.New("invalid layer")
	ErrBadGrid       = errors.New("invalid detector grid")
	ErrBadOptions    = errors.New("invalid run options")
	ErrBadConfig     = errors.New("invalid run file")
	ErrAlloc         = errors.New("allocation too large")
)
