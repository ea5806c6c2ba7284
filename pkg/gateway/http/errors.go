package http

import "errors"

// ErrBadRequest/ErrNotFound classify a gateway-level failure into the
// HTTP status the server.go route handler maps it to, mirroring the
// teacher gateway's GatewayError/ErrGw* sentinel family (errors.go)
// generalized from CiA 309-5's numeric error codes to two coarse classes
// since this gateway has no equivalent wire error-code table to reuse.
var (
	ErrBadRequest = errors.New("gateway: malformed request")
	ErrNotFound   = errors.New("gateway: path not found")
)
