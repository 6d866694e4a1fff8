package service

import (
	"context"
	"sync"
	"time"

	"github.com/timmy/timesheet/internal/domain"
	"github.com/timmy/timesheet/internal/logger"
)

// Generator produces the documents of a submission.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}

// Orchestrator runs document generation in the background and records the
// outcome in the JobRegistry. Each run races a deadline; losing the race
// cancels the run's context so storage and database calls stop.
type Orchestrator struct {
	registry  *JobRegistry
	generator Generator
	timeout   time.Duration

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(registry *JobRegistry, generator Generator, timeout time.Duration) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		registry:  registry,
		generator: generator,
		timeout:   timeout,
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

// Start runs generation for jobID in a new goroutine and returns immediately.
// ctx only contributes its logger; request cancellation does not stop the job.
func (o *Orchestrator) Start(ctx context.Context, jobID string, req GenerateRequest) {
	runCtx := logger.FromContext(ctx).WithContext(o.baseCtx)
	runCtx = logger.SetJobID(runCtx, jobID)
	runCtx = logger.SetComponent(runCtx, "orchestrator")

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(runCtx, jobID, req)
	}()
}

type generateOutcome struct {
	result *GenerateResult
	err    error
}

func (o *Orchestrator) run(ctx context.Context, jobID string, req GenerateRequest) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	logger.CtxInfo(ctx, "Document generation started for %d entries", len(req.EntryIDs))

	done := make(chan generateOutcome, 1)
	go func() {
		res, err := o.generator.Generate(ctx, req)
		done <- generateOutcome{result: res, err: err}
	}()

	var err error
	select {
	case out := <-done:
		if out.err != nil {
			err = o.registry.Fail(jobID, out.err.Error())
			logger.With(logger.Fields{
				logger.FieldStatus:     domain.JobStatusFailed,
				logger.FieldDurationMs: time.Since(start).Milliseconds(),
			}).Error(ctx, "Document generation failed: %v", out.err)
			break
		}
		err = o.registry.Complete(jobID, out.result.URLs())
		logger.With(logger.Fields{
			logger.FieldStatus:     domain.JobStatusCompleted,
			logger.FieldCount:      len(out.result.Documents),
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
		}).Info(ctx, "Document generation completed")
	case <-ctx.Done():
		timeoutErr := domain.NewTimeoutError("document generation timed out after %s", o.timeout)
		if o.baseCtx.Err() != nil {
			timeoutErr = domain.NewTimeoutError("document generation aborted by shutdown")
		}
		err = o.registry.Fail(jobID, timeoutErr.Error())
		logger.With(logger.Fields{
			logger.FieldStatus:     domain.JobStatusFailed,
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
		}).Error(ctx, "%v", timeoutErr)
	}

	if err != nil {
		logger.CtxWarn(ctx, "Failed to record job outcome: %v", err)
	}
}

// Shutdown waits for running jobs until ctx is done, then cancels the rest
// and waits for them to record their failure.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	finished := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		o.cancel()
		<-finished
	}
	o.cancel()
}
