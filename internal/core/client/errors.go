package client

import "errors"

var (
	ErrUnknownClient = errors.New("unknown client")
	ErrOutboxFull    = errors.New("client outbox full")
	ErrClientClosed  = errors.New("client closed")
)
