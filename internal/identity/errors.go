package identity

import "errors"

var (
	// ErrInvalidCredential is returned for any malformed, expired, or
	// unverifiable credential. Resolution fails closed: no partial or
	// default actor is ever produced.
	ErrInvalidCredential = errors.New("identity: invalid credential")

	ErrNotFound      = errors.New("identity: not found")
	ErrAlreadyExists = errors.New("identity: already exists")
	ErrInvalidInput  = errors.New("identity: invalid input")
	ErrUnauthorized  = errors.New("identity: unauthorized")
)
