package types

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already exists")
	ErrNoDomainAvailable  = errors.New("no domain available")
	ErrPathSpaceExhausted = errors.New("short path space exhausted")
	ErrAccountBlocked     = errors.New("account is frozen or banned")
	ErrBadCredentials     = errors.New("wrong email or password")
)
