package gateway

import "errors"

var errUnknownOp = errors.New("gateway: unknown intent op")

var (
	errNotOwner            = errors.New("gateway: principal does not hold item")
	errInsufficientBalance = errors.New("gateway: insufficient balance")
)
