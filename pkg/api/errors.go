package api

import "errors"

// Error codes returned in the upload response body.
const (
	errForbidden  = "forbidden"
	errBadPayload = "bad_payload"
	errTooLarge   = "payload_too_large"
)

var (
	errWrongPlayer   = errors.New("player is missing or not tracked")
	errItemsNotArray = errors.New("items is not an array")
)
