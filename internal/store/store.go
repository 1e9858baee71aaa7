// Package store is the relational data access layer. The database remains
// the source of truth for documents, chunks and chat history; the vector
// store only ever holds derived data.
package store

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound hides the ORM behind a stable sentinel.
var ErrNotFound = errors.New("not found")

// Store bundles the shared gorm handle.
type Store struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{DB: db}
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
