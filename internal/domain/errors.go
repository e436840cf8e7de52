package domain

import "errors"

var (
	// ErrAlreadyExists is returned when inserting a key that is present.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotFound is returned when a required record is missing.
	ErrNotFound = errors.New("not found")
	// ErrNoIdentity is returned before an owned identity has been created.
	ErrNoIdentity = errors.New("no owned identity on this device")
)
