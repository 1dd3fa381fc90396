package errors

import "fmt"

var (
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrSessionExpired     = fmt.Errorf("session expired")
	ErrIdentityChanged    = fmt.Errorf("identity changed, result discarded")
	ErrValidation         = fmt.Errorf("validation failed")
	ErrBookingNotFound    = fmt.Errorf("booking not found")
	ErrInvalidTransition  = fmt.Errorf("booking transition not permitted")
	ErrNotConnected       = fmt.Errorf("not connected")
	ErrConnectFailed      = fmt.Errorf("connection failed")
	ErrSendFailed         = fmt.Errorf("send failed")
	ErrFetchFailed        = fmt.Errorf("fetch failed")
	ErrUnauthorized       = fmt.Errorf("unauthorized")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
)
