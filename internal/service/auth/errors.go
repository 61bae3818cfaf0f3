package auth

import "errors"

var (
	// ErrInvalidToken covers malformed tokens, bad signatures and unexpected
	// signing methods.
	ErrInvalidToken = errors.New("invalid authentication token")

	ErrExpiredToken     = errors.New("authentication token has expired")
	ErrTokenNotYetValid = errors.New("authentication token not yet valid")
	ErrMissingToken     = errors.New("authentication token is missing")

	// ErrInvalidClaims is a correctly signed token whose uid, cid or role
	// cannot be used as an actor.
	ErrInvalidClaims = errors.New("authentication token has invalid claims")
)
