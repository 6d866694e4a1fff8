package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store bundles the repositories that share one database handle, so a caller
// can run several of them inside a single transaction.
type Store struct {
	db         *gorm.DB
	Entries    *WorkEntryRepository
	Tasks      *TaskRepository
	Users      *UserRepository
	Signatures *SignatureRepository
	Documents  *DocumentRepository
}

// NewStore creates a Store bound to db.
// Parameters:
//   - db: GORM database handle (or transaction) shared by all repositories.
// Returns:
//   - *Store: store with every repository initialized.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:         db,
		Entries:    NewWorkEntryRepository(db),
		Tasks:      NewTaskRepository(db),
		Users:      NewUserRepository(db),
		Signatures: NewSignatureRepository(db),
		Documents:  NewDocumentRepository(db),
	}
}

// DB returns the underlying handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn with a Store bound to a single database transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
