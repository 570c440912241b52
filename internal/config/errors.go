package config

import "errors"

// ErrInvalidConfig is returned for configurations that cannot be served.
var ErrInvalidConfig = errors.New("invalid configuration")
