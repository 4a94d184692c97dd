package services

import "errors"

// Authentication failures. Handlers answer all of them with 401 except
// ErrTOTPRequired, which asks the client for a second factor.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("account is inactive")
	ErrTOTPRequired       = errors.New("two-factor code required")
	ErrInvalidTOTP        = errors.New("invalid two-factor code")
	ErrInvalidRefresh     = errors.New("refresh token is invalid or expired")
)
