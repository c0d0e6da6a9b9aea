package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no row matches a lookup.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a uniqueness constraint
	// (duplicate email, or a provider subject already linked elsewhere).
	ErrConflict = errors.New("record conflicts with an existing one")
	// ErrUnavailable wraps any other storage failure.
	ErrUnavailable = errors.New("store unavailable")
)

// translate maps driver and ORM errors onto the repository's sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ErrConflict
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
