package exchange

import "errors"

var (
	ErrTimeout      = errors.New("exchange: retransmission limit reached")
	ErrReset        = errors.New("exchange: peer sent RST")
	ErrInvalidState = errors.New("exchange: invalid state")
)
