package models

import "errors"

// ErrInvalidArgument is returned by the parsers below for unknown input.
// provider.ErrInvalidArgument wraps the same value.
var ErrInvalidArgument = errors.New("invalid argument")
