package errors

import "errors"

var (
	ErrNotFound = errors.New("event not found")

	ErrInvalidID = errors.New("invalid event ID format")

	ErrCapacityExceeded = errors.New("event capacity exceeded")

	ErrNotBookable = errors.New("event is not open for booking")

	ErrCapacityBelowBooked = errors.New("capacity cannot be lower than tickets already booked")

	ErrCounterUnderflow = errors.New("booked count would drop below zero")
)
