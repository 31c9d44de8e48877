package domain

import "errors"

// Authentication errors
var (
	ErrAccountNotFound        = errors.New("account not found")
	ErrAccountExists          = errors.New("account already exists")
	ErrDuplicateEmail         = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrFederatedAccount       = errors.New("this account uses Google Sign-In; please use the Google login button")
	ErrInvalidOrExpiredCode   = errors.New("invalid or expired verification code")
	ErrRegistrationNotPending = errors.New("account is not awaiting registration")
)

// Validation errors
var (
	ErrInvalidEmail = errors.New("invalid email address")
)

// Delivery errors
var (
	ErrEmailDeliveryFailed = errors.New("email delivery failed")
)
