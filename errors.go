// Package lwm2m is the top-level package of the LwM2M 1.1/1.2 protocol
// engine. It ties together the CoAP codec, exchange engine, data model,
// registration/bootstrap drivers, observation engine and client state
// machine exposed by the sub-packages under pkg/.
package lwm2m

import "errors"

var (
	ErrIllegalArgument  = errors.New("error in function arguments")
	ErrInvalidState     = errors.New("operation not valid in the current state")
	ErrBusy             = errors.New("an exchange is already in progress")
	ErrTimeout          = errors.New("operation timed out")
	ErrTerminated       = errors.New("operation was terminated by caller")
	ErrWouldBlock       = errors.New("operation would block")
	ErrOutOfMemory      = errors.New("fixed capacity buffer exhausted")
	ErrNotConfigured    = errors.New("client configuration is incomplete")
	ErrNoSecurityObject = errors.New("no usable security object instance found")
)
