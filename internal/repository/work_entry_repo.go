package repository

import (
	"context"

	"github.com/timmy/timesheet/internal/domain"
	"gorm.io/gorm"
)

// WorkEntryRepository handles work entry data operations.
type WorkEntryRepository struct {
	db *gorm.DB
}

// NewWorkEntryRepository creates a new WorkEntryRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *WorkEntryRepository: repository instance bound to db.
func NewWorkEntryRepository(db *gorm.DB) *WorkEntryRepository {
	return &WorkEntryRepository{db: db}
}

// ConfirmationUpdate carries the fields written by a confirmation decision.
type ConfirmationUpdate struct {
	ConfirmationStatus domain.ConfirmationStatus
	RejectionReason    *string
	Status             string
	IsDraft            bool
	TaskID             uint
	EmployeeID         uint
}

// Create inserts a new work entry.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - entry: entry to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *WorkEntryRepository) Create(ctx context.Context, entry *domain.WorkEntry) error {
	return translate(r.db.WithContext(ctx).Create(entry).Error, "work entry")
}

// GetByID retrieves a work entry by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: entry ID.
// Returns:
//   - *domain.WorkEntry: entry if found.
//   - error: NotFound error if the entry does not exist.
func (r *WorkEntryRepository) GetByID(ctx context.Context, id uint) (*domain.WorkEntry, error) {
	var entry domain.WorkEntry
	if err := r.db.WithContext(ctx).First(&entry, id).Error; err != nil {
		return nil, translate(err, "work entry %d", id)
	}
	return &entry, nil
}

// ListByIDs retrieves the entries with the given IDs ordered by work date.
// Missing IDs are skipped.
func (r *WorkEntryRepository) ListByIDs(ctx context.Context, ids []uint) ([]domain.WorkEntry, error) {
	var entries []domain.WorkEntry
	if len(ids) == 0 {
		return entries, nil
	}
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("work_date ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, translate(err, "list work entries")
	}
	return entries, nil
}

// ListConfirmedDetailed loads the confirmed entries among ids together with
// their employee and the task's project and customer, ordered by work date.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ids: candidate entry IDs.
// Returns:
//   - []domain.WorkEntry: confirmed entries with relations preloaded.
//   - error: non-nil if the query fails.
func (r *WorkEntryRepository) ListConfirmedDetailed(ctx context.Context, ids []uint) ([]domain.WorkEntry, error) {
	var entries []domain.WorkEntry
	if len(ids) == 0 {
		return entries, nil
	}
	err := r.db.WithContext(ctx).
		Preload("Employee").
		Preload("Task.Project.Customer").
		Where("id IN ? AND confirmation_status = ?", ids, domain.ConfirmationConfirmed).
		Order("work_date ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, translate(err, "list confirmed work entries")
	}
	return entries, nil
}

// UpdateConfirmation writes a confirmation decision unless the entry is
// already confirmed. The condition is part of the UPDATE statement, so two
// concurrent confirmations of one entry cannot both succeed.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: entry ID.
//   - upd: fields to write.
// Returns:
//   - *domain.WorkEntry: the entry as stored after the update.
//   - error: ImmutableState error if the entry is confirmed, NotFound if missing.
func (r *WorkEntryRepository) UpdateConfirmation(ctx context.Context, id uint, upd ConfirmationUpdate) (*domain.WorkEntry, error) {
	db := r.db.WithContext(ctx)

	result := db.Model(&domain.WorkEntry{}).
		Where("id = ? AND confirmation_status <> ?", id, domain.ConfirmationConfirmed).
		Updates(map[string]interface{}{
			"confirmation_status": upd.ConfirmationStatus,
			"rejection_reason":    upd.RejectionReason,
			"status":              upd.Status,
			"is_draft":            upd.IsDraft,
			"task_id":             upd.TaskID,
			"employee_id":         upd.EmployeeID,
		})
	if result.Error != nil {
		return nil, translate(result.Error, "update work entry %d", id)
	}

	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, domain.NewImmutableStateError("work entry %d is already confirmed", id)
	}

	return r.GetByID(ctx, id)
}

// CountByTimesheet returns how many entries are linked to a document.
func (r *WorkEntryRepository) CountByTimesheet(ctx context.Context, timesheetID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.WorkEntry{}).
		Where("timesheet_id = ?", timesheetID).
		Count(&count).Error
	if err != nil {
		return 0, translate(err, "count linked work entries")
	}
	return count, nil
}
