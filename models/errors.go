package models

import "errors"

var (
	// ErrNotFound means no attendee or credential exists for the given id.
	ErrNotFound = errors.New("not found")
	// ErrInvalidPayload means a scanned payload is not a well-formed id.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrIssuanceFailed means rendering or persisting a credential failed.
	ErrIssuanceFailed = errors.New("issuance failed")
	// ErrDeliveryFailed means the mail channel rejected or errored.
	ErrDeliveryFailed = errors.New("delivery failed")
)
