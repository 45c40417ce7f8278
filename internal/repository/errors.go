package repository

import "errors"

var (
	// ErrNotFound is wrapped by every point lookup that matches no row
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique constraint rejects a write
	ErrConflict = errors.New("already exists")
)
