package store

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a write collides with a unique key.
	ErrDuplicate = errors.New("duplicate")
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func isPQError(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == code
	}
	return false
}

func isUniqueViolation(err error) bool {
	return isPQError(err, pqUniqueViolation)
}

func isForeignKeyViolation(err error) bool {
	return isPQError(err, pqForeignKeyViolation)
}
