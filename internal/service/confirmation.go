package service

import (
	"context"
	"strings"
	"time"

	"github.com/timmy/timesheet/internal/domain"
	"github.com/timmy/timesheet/internal/logger"
	"github.com/timmy/timesheet/internal/notify"
	"github.com/timmy/timesheet/internal/repository"
)

// EntryDecision is one supervisor decision on a work entry.
type EntryDecision struct {
	ID                 uint                      `json:"id"`
	ConfirmationStatus domain.ConfirmationStatus `json:"confirmation_status"`
	WorkDate           string                    `json:"work_date"`
	RejectionReason    *string                   `json:"rejection_reason,omitempty"`
	Status             *string                   `json:"status,omitempty"`
	IsDraft            *bool                     `json:"is_draft,omitempty"`
	TaskID             *uint                     `json:"task_id,omitempty"`
	EmployeeID         *uint                     `json:"employee_id,omitempty"`
}

// ConfirmationRequest is a batch of decisions by one supervisor.
type ConfirmationRequest struct {
	ActorID         uint
	Entries         []EntryDecision
	RejectionReason string
	ProblematicDays []notify.ProblematicDay
}

// Notifier receives notification intents. Implementations must not block.
type Notifier interface {
	NotifyApproval(employeeID, entryID, taskID uint, taskTitle string) error
	NotifyWeekRejection(employeeID uint, entryIDs []uint, taskID uint, reason, taskTitle string, week, year int, projectID uint, problematic []notify.ProblematicDay) error
}

// ConfirmationService validates and persists confirmation decisions.
type ConfirmationService struct {
	store       *repository.Store
	notifier    Notifier
	atomicBatch bool
}

// NewConfirmationService creates a ConfirmationService.
// When atomicBatch is set, a failing decision rolls back the whole batch;
// otherwise decisions persisted before the failure stay committed.
func NewConfirmationService(store *repository.Store, notifier Notifier, atomicBatch bool) *ConfirmationService {
	return &ConfirmationService{
		store:       store,
		notifier:    notifier,
		atomicBatch: atomicBatch,
	}
}

type confirmedEntry struct {
	entry domain.WorkEntry
	task  *domain.Task
}

// Confirm applies the decisions in submission order and returns the updated entries.
// The first failing decision aborts the batch. Rejections without a reason fail
// before anything is written.
func (s *ConfirmationService) Confirm(ctx context.Context, req ConfirmationRequest) ([]domain.WorkEntry, error) {
	start := time.Now()
	ctx = logger.SetComponent(ctx, "confirmation")

	if len(req.Entries) == 0 {
		return nil, domain.NewValidationError("entries must not be empty")
	}
	for _, d := range req.Entries {
		if d.ConfirmationStatus == domain.ConfirmationRejected && s.rejectionReason(req, d) == "" {
			return nil, domain.NewValidationError("rejection reason is required to reject entry %d", d.ID)
		}
	}

	var done []confirmedEntry
	apply := func(st *repository.Store) error {
		for _, d := range req.Entries {
			entry, task, err := s.confirmOne(ctx, st, req, d)
			if err != nil {
				return err
			}
			done = append(done, confirmedEntry{entry: *entry, task: task})
		}
		return nil
	}

	var err error
	if s.atomicBatch {
		err = s.store.Transaction(ctx, apply)
		if err != nil {
			done = nil
		}
	} else {
		err = apply(s.store)
	}

	s.notifyApprovals(ctx, done)
	if err != nil {
		logger.With(logger.Fields{
			logger.FieldCount:      len(done),
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
		}).Warn(ctx, "Confirmation batch aborted: %v", err)
		return nil, err
	}
	s.notifyRejections(ctx, req, done)

	updated := make([]domain.WorkEntry, 0, len(done))
	for _, c := range done {
		updated = append(updated, c.entry)
	}

	logger.With(logger.Fields{
		logger.FieldCount:      len(updated),
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info(ctx, "Confirmation batch applied")

	return updated, nil
}

func (s *ConfirmationService) confirmOne(ctx context.Context, st *repository.Store, req ConfirmationRequest, d EntryDecision) (*domain.WorkEntry, *domain.Task, error) {
	if d.ID == 0 {
		return nil, nil, domain.NewValidationError("entry id is required")
	}
	if d.ConfirmationStatus == "" {
		return nil, nil, domain.NewValidationError("confirmation_status is required for entry %d", d.ID)
	}
	if !d.ConfirmationStatus.Valid() {
		return nil, nil, domain.NewValidationError("invalid confirmation_status %q for entry %d", d.ConfirmationStatus, d.ID)
	}
	if strings.TrimSpace(d.WorkDate) == "" {
		return nil, nil, domain.NewValidationError("work_date is required for entry %d", d.ID)
	}
	if _, err := domain.ParseDate(d.WorkDate); err != nil {
		return nil, nil, domain.NewValidationError("invalid work_date for entry %d: %v", d.ID, err)
	}

	existing, err := st.Entries.GetByID(ctx, d.ID)
	if err != nil {
		return nil, nil, err
	}

	taskID, err := resolveRef("task_id", d.ID, d.TaskID, existing.TaskID)
	if err != nil {
		return nil, nil, err
	}
	employeeID, err := resolveRef("employee_id", d.ID, d.EmployeeID, existing.EmployeeID)
	if err != nil {
		return nil, nil, err
	}

	task, err := st.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	if task.SupervisorID != req.ActorID {
		return nil, nil, domain.NewAuthorizationError("task %d is not supervised by user %d", task.ID, req.ActorID)
	}

	if existing.ConfirmationStatus == domain.ConfirmationConfirmed {
		return nil, nil, domain.NewImmutableStateError("work entry %d is already confirmed", existing.ID)
	}

	finalStatus := domain.DefaultEntryStatus
	switch {
	case d.Status != nil && *d.Status != "":
		finalStatus = *d.Status
	case existing.Status != "":
		finalStatus = existing.Status
	}
	finalIsDraft := existing.IsDraft
	if d.IsDraft != nil {
		finalIsDraft = *d.IsDraft
	}

	var reason *string
	if d.ConfirmationStatus == domain.ConfirmationRejected {
		r := s.rejectionReason(req, d)
		reason = &r
	}

	updated, err := st.Entries.UpdateConfirmation(ctx, existing.ID, repository.ConfirmationUpdate{
		ConfirmationStatus: d.ConfirmationStatus,
		RejectionReason:    reason,
		Status:             finalStatus,
		IsDraft:            finalIsDraft,
		TaskID:             taskID,
		EmployeeID:         employeeID,
	})
	if err != nil {
		return nil, nil, err
	}
	return updated, task, nil
}

// resolveRef picks the effective reference: a non-zero explicit value
// overrides the stored one. The supervisor check runs on the result.
func resolveRef(field string, entryID uint, explicit, stored *uint) (uint, error) {
	switch {
	case explicit != nil && *explicit != 0:
		return *explicit, nil
	case stored != nil && *stored != 0:
		return *stored, nil
	default:
		return 0, domain.NewValidationError("%s could not be resolved for work entry %d", field, entryID)
	}
}

// rejectionReason returns the decision's own reason, falling back to the batch reason.
func (s *ConfirmationService) rejectionReason(req ConfirmationRequest, d EntryDecision) string {
	if d.RejectionReason != nil {
		if r := strings.TrimSpace(*d.RejectionReason); r != "" {
			return r
		}
	}
	return strings.TrimSpace(req.RejectionReason)
}

func (s *ConfirmationService) notifyApprovals(ctx context.Context, done []confirmedEntry) {
	for _, c := range done {
		if c.entry.ConfirmationStatus != domain.ConfirmationConfirmed || c.entry.EmployeeID == nil {
			continue
		}
		if err := s.notifier.NotifyApproval(*c.entry.EmployeeID, c.entry.ID, c.task.ID, c.task.Title); err != nil {
			logger.CtxWarn(ctx, "Failed to queue approval notification for entry %d: %v", c.entry.ID, err)
		}
	}
}

// notifyRejections sends one consolidated intent per task week with rejected entries.
func (s *ConfirmationService) notifyRejections(ctx context.Context, req ConfirmationRequest, done []confirmedEntry) {
	tasks := make(map[uint]*domain.Task)
	var rejected []domain.WorkEntry
	for _, c := range done {
		if c.entry.ConfirmationStatus == domain.ConfirmationRejected {
			rejected = append(rejected, c.entry)
			tasks[c.task.ID] = c.task
		}
	}

	for _, g := range GroupEntries(rejected) {
		first := g.Entries[0]
		if first.EmployeeID == nil {
			continue
		}
		task := tasks[g.Key.TaskID]
		var projectID uint
		if task.ProjectID != nil {
			projectID = *task.ProjectID
		}

		reason := strings.TrimSpace(req.RejectionReason)
		if reason == "" && first.RejectionReason != nil {
			reason = *first.RejectionReason
		}

		ids := g.EntryIDs()
		err := s.notifier.NotifyWeekRejection(*first.EmployeeID, ids, task.ID, reason, task.Title,
			g.Key.Week, g.Key.Year, projectID, problematicFor(req.ProblematicDays, ids))
		if err != nil {
			logger.CtxWarn(ctx, "Failed to queue rejection notification for task %d week %d/%d: %v",
				task.ID, g.Key.Week, g.Key.Year, err)
		}
	}
}

func problematicFor(days []notify.ProblematicDay, ids []uint) []notify.ProblematicDay {
	if len(days) == 0 {
		return nil
	}
	in := make(map[uint]bool, len(ids))
	for _, id := range ids {
		in[id] = true
	}
	var out []notify.ProblematicDay
	for _, d := range days {
		if in[d.EntryID] {
			out = append(out, d)
		}
	}
	return out
}
