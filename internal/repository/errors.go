package repository

import (
	"errors"

	"carmen/internal/pricing"

	"gorm.io/gorm"
)

// ErrVersionConflict is returned when an optimistic update finds that the row
// moved past the version the caller read.
var ErrVersionConflict = errors.New("optimistic lock: record version changed")

// notFound turns gorm.ErrRecordNotFound into the domain NotFoundError.
func notFound(err error, resource, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &pricing.NotFoundError{Resource: resource, ID: id}
	}
	return err
}
