// Package repository defines the record store used by the service and
// its two backends: MySQL (the default) and MongoDB.  The sentinel errors
// below are shared by both so that services and handlers can map store
// failures to responses without knowing which backend is active.
package repository

import "errors"

// ErrInvalidID is returned when an identifier is not in the format the
// active backend assigns (UUID for MySQL, ObjectID hex for MongoDB).
// Handlers should translate this into an HTTP 400 response.
var ErrInvalidID = errors.New("invalid id")

// ErrParcelNotFound is returned when no parcel exists for an id.
var ErrParcelNotFound = errors.New("parcel not found")

// ErrPaymentNotFound is returned when no payment exists for a
// transaction id.
var ErrPaymentNotFound = errors.New("payment not found")

// ErrDuplicatePayment is returned when a payment with the same gateway
// transaction id has already been recorded.  It comes straight from the
// store's unique constraint, so it is authoritative even under
// concurrent confirmations.
var ErrDuplicatePayment = errors.New("payment already recorded")
