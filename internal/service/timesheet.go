package service

import (
	"context"

	"github.com/timmy/timesheet/internal/domain"
	"github.com/timmy/timesheet/internal/logger"
	"github.com/timmy/timesheet/internal/notify"
	"github.com/timmy/timesheet/internal/repository"
)

// SubmitOutcome tells the caller which of the submission paths was taken.
type SubmitOutcome int

const (
	// OutcomeConfirmed: no signature, decisions applied synchronously.
	OutcomeConfirmed SubmitOutcome = iota
	// OutcomeAccepted: decisions applied and a new generation job started.
	OutcomeAccepted
	// OutcomeInProgress: an equivalent job is still processing.
	OutcomeInProgress
	// OutcomeCached: an equivalent job already completed.
	OutcomeCached
)

// SubmitRequest is a timesheet submission by a supervisor.
type SubmitRequest struct {
	ActorID         uint
	Entries         []EntryDecision
	RejectionReason string
	ProblematicDays []notify.ProblematicDay
	SignatureID     *uint
}

// SubmitResult is the synchronous answer to a submission.
type SubmitResult struct {
	Outcome SubmitOutcome
	Entries []domain.WorkEntry
	Job     domain.Job
}

// TimesheetService ties confirmation, deduplication and background generation together.
type TimesheetService struct {
	store        *repository.Store
	confirmation *ConfirmationService
	registry     *JobRegistry
	orchestrator *Orchestrator
}

// NewTimesheetService creates a TimesheetService.
func NewTimesheetService(store *repository.Store, confirmation *ConfirmationService, registry *JobRegistry, orchestrator *Orchestrator) *TimesheetService {
	return &TimesheetService{
		store:        store,
		confirmation: confirmation,
		registry:     registry,
		orchestrator: orchestrator,
	}
}

// Submit applies a submission. Without a signature it only confirms. With one,
// the signature is checked first, then the request hash is deduplicated
// against the registry; only a new job confirms and starts generation. A
// duplicate is served only to a supervisor of all its entries' tasks.
func (s *TimesheetService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	ctx = logger.SetActorID(ctx, req.ActorID)
	confirmReq := ConfirmationRequest{
		ActorID:         req.ActorID,
		Entries:         req.Entries,
		RejectionReason: req.RejectionReason,
		ProblematicDays: req.ProblematicDays,
	}

	if req.SignatureID == nil {
		entries, err := s.confirmation.Confirm(ctx, confirmReq)
		if err != nil {
			return nil, err
		}
		return &SubmitResult{Outcome: OutcomeConfirmed, Entries: entries}, nil
	}

	if len(req.Entries) == 0 {
		return nil, domain.NewValidationError("entries must not be empty")
	}

	sig, err := s.store.Signatures.GetActiveForSupervisor(ctx, *req.SignatureID, req.ActorID)
	if err != nil {
		return nil, err
	}

	job, created := s.registry.Acquire(RequestHash(req.Entries))
	if !created {
		if err := s.authorizeEntries(ctx, req.ActorID, req.Entries); err != nil {
			return nil, err
		}
		outcome := OutcomeInProgress
		if job.Status == domain.JobStatusCompleted {
			outcome = OutcomeCached
		}
		logger.CtxInfo(logger.SetJobID(ctx, job.ID), "Duplicate submission served from job registry (%s)", job.Status)
		return &SubmitResult{Outcome: outcome, Job: job}, nil
	}
	ctx = logger.SetJobID(ctx, job.ID)

	entries, err := s.confirmation.Confirm(ctx, confirmReq)
	if err != nil {
		if failErr := s.registry.Fail(job.ID, err.Error()); failErr != nil {
			logger.CtxWarn(ctx, "Failed to mark job failed: %v", failErr)
		}
		return nil, err
	}

	ids := make([]uint, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	s.orchestrator.Start(ctx, job.ID, GenerateRequest{
		EntryIDs:     ids,
		SignatureURL: sig.URL,
		ApproverID:   req.ActorID,
	})

	return &SubmitResult{Outcome: OutcomeAccepted, Entries: entries, Job: job}, nil
}

// authorizeEntries checks that actorID supervises the effective task of every
// decision. Duplicates skip confirmation, so the check runs here instead.
func (s *TimesheetService) authorizeEntries(ctx context.Context, actorID uint, decisions []EntryDecision) error {
	ids := make([]uint, 0, len(decisions))
	for _, d := range decisions {
		ids = append(ids, d.ID)
	}
	entries, err := s.store.Entries.ListByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[uint]*domain.WorkEntry, len(entries))
	for i := range entries {
		byID[entries[i].ID] = &entries[i]
	}

	checked := make(map[uint]bool)
	for _, d := range decisions {
		entry, ok := byID[d.ID]
		if !ok {
			return domain.NewNotFoundError("work entry %d not found", d.ID)
		}
		taskID, err := resolveRef("task_id", d.ID, d.TaskID, entry.TaskID)
		if err != nil {
			return err
		}
		if checked[taskID] {
			continue
		}
		task, err := s.store.Tasks.GetByID(ctx, taskID)
		if err != nil {
			return err
		}
		if task.SupervisorID != actorID {
			return domain.NewAuthorizationError("task %d is not supervised by user %d", task.ID, actorID)
		}
		checked[taskID] = true
	}
	return nil
}

// JobStatus returns the job with the given ID.
func (s *TimesheetService) JobStatus(id string) (domain.Job, error) {
	job, ok := s.registry.Get(id)
	if !ok {
		return domain.Job{}, domain.NewNotFoundError("job %s not found", id)
	}
	return job, nil
}
