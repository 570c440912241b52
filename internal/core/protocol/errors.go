package protocol

import "errors"

// Wire protocol errors
var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrUnknownOutcome = errors.New("unknown action outcome")
	ErrEncode         = errors.New("message encoding failed")
	ErrDecode         = errors.New("message decoding failed")
)
