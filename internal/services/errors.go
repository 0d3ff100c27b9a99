package services

import "errors"

// Workflow errors. Handlers map these onto HTTP statuses; anything else is an
// internal dependency failure.
var (
	// ErrValidation covers malformed or missing input.
	ErrValidation = errors.New("invalid request")

	// ErrDuplicateAccount means the email is already registered.
	ErrDuplicateAccount = errors.New("email already exists")

	// ErrUsernameTaken means the username is already in use.
	ErrUsernameTaken = errors.New("username taken")

	// ErrOTPInvalid covers every OTP failure (missing, expired, mismatch) so
	// callers cannot probe which codes exist.
	ErrOTPInvalid = errors.New("otp missing, expired or invalid")

	// ErrNoSuchUser means login named an unknown username.
	ErrNoSuchUser = errors.New("user does not exist")

	// ErrBadCredentials means the password did not match.
	ErrBadCredentials = errors.New("incorrect password")

	// ErrDeliveryFailed means the verification mail could not be sent.
	ErrDeliveryFailed = errors.New("failed to send OTP email")
)
