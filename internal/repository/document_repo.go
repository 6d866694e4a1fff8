package repository

import (
	"context"

	"github.com/timmy/timesheet/internal/domain"
	"gorm.io/gorm"
)

// SignatureRepository handles signature data operations.
type SignatureRepository struct {
	db *gorm.DB
}

// NewSignatureRepository creates a new SignatureRepository.
func NewSignatureRepository(db *gorm.DB) *SignatureRepository {
	return &SignatureRepository{db: db}
}

// Create inserts a new signature.
func (r *SignatureRepository) Create(ctx context.Context, sig *domain.Signature) error {
	return translate(r.db.WithContext(ctx).Create(sig).Error, "signature")
}

// GetActiveForSupervisor retrieves a signature only if it is active and owned
// by supervisorID. Any other signature is reported as not found.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: signature ID.
//   - supervisorID: ID of the requesting supervisor.
// Returns:
//   - *domain.Signature: signature if usable.
//   - error: NotFound error otherwise.
func (r *SignatureRepository) GetActiveForSupervisor(ctx context.Context, id, supervisorID uint) (*domain.Signature, error) {
	var sig domain.Signature
	err := r.db.WithContext(ctx).
		Where("id = ? AND supervisor_id = ? AND is_active = ?", id, supervisorID, true).
		First(&sig).Error
	if err != nil {
		return nil, translate(err, "active signature %d", id)
	}
	return &sig, nil
}

// DocumentRepository handles timesheet document data operations.
type DocumentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// CreateWithEntries inserts doc and links the confirmed entries among
// entryIDs to it in one transaction.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - doc: document row to insert; its ID is set on success.
//   - entryIDs: entries of the document's group.
// Returns:
//   - int64: number of linked entries.
//   - error: non-nil if either write fails; nothing is persisted then.
func (r *DocumentRepository) CreateWithEntries(ctx context.Context, doc *domain.TimesheetDocument, entryIDs []uint) (int64, error) {
	var linked int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(doc).Error; err != nil {
			return translate(err, "timesheet document for task %d week %d/%d", doc.TaskID, doc.WeekNumber, doc.Year)
		}
		if len(entryIDs) == 0 {
			return nil
		}
		result := tx.Model(&domain.WorkEntry{}).
			Where("id IN ? AND confirmation_status = ?", entryIDs, domain.ConfirmationConfirmed).
			Update("timesheet_id", doc.ID)
		if result.Error != nil {
			return translate(result.Error, "link entries to timesheet document %d", doc.ID)
		}
		linked = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return linked, nil
}

// ListByGroup returns the documents generated for a task and ISO week, newest first.
func (r *DocumentRepository) ListByGroup(ctx context.Context, taskID uint, week, year int) ([]domain.TimesheetDocument, error) {
	var docs []domain.TimesheetDocument
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND week_number = ? AND year = ?", taskID, week, year).
		Order("id DESC").
		Find(&docs).Error
	if err != nil {
		return nil, translate(err, "list timesheet documents")
	}
	return docs, nil
}
