package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/timmy/timesheet/internal/domain"
	"github.com/timmy/timesheet/internal/logger"
	"github.com/timmy/timesheet/internal/repository"
	"github.com/timmy/timesheet/internal/storage"
)

// SignatureSource loads a signature image by its storage URL.
type SignatureSource interface {
	Fetch(ctx context.Context, url string) (image.Image, error)
}

// GenerateRequest asks for the documents of a confirmed submission.
type GenerateRequest struct {
	EntryIDs     []uint
	SignatureURL string
	ApproverID   uint
}

// GenerateResult lists the documents produced, in processing order.
type GenerateResult struct {
	Documents []domain.TimesheetDocument
}

// URLs returns the document URLs in processing order.
func (r *GenerateResult) URLs() []string {
	urls := make([]string, 0, len(r.Documents))
	for _, d := range r.Documents {
		urls = append(urls, d.URL)
	}
	return urls
}

// DocumentService generates one timesheet document per task week.
type DocumentService struct {
	store     *repository.Store
	storage   storage.ObjectStorage
	signature SignatureSource
	renderer  Renderer
	keyPrefix string
	now       func() time.Time
}

// NewDocumentService creates a DocumentService.
func NewDocumentService(store *repository.Store, objectStorage storage.ObjectStorage, signature SignatureSource, renderer Renderer, keyPrefix string) *DocumentService {
	return &DocumentService{
		store:     store,
		storage:   objectStorage,
		signature: signature,
		renderer:  renderer,
		keyPrefix: strings.Trim(keyPrefix, "/"),
		now:       time.Now,
	}
}

// Generate renders, uploads and records a document for every (task, week, year)
// group among the confirmed entries of req. Groups are processed one after
// another; any failure fails the whole run. Without confirmed entries there is
// nothing to render and the result is empty.
func (s *DocumentService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	start := time.Now()

	entries, err := s.store.Entries.ListConfirmedDetailed(ctx, req.EntryIDs)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		logger.CtxInfo(ctx, "No confirmed entries, no timesheet to generate")
		return &GenerateResult{}, nil
	}

	approver, err := s.store.Users.GetByID(ctx, req.ApproverID)
	if err != nil {
		return nil, err
	}

	img, err := s.signature.Fetch(ctx, req.SignatureURL)
	if err != nil {
		return nil, err
	}
	sig, err := EncodeSignature(img)
	if err != nil {
		return nil, domain.NewUpstreamStorageError(err, "unusable signature image")
	}

	result := &GenerateResult{}
	for _, g := range GroupEntries(entries) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := s.generateGroup(ctx, &g, approver, sig)
		if err != nil {
			return nil, err
		}
		result.Documents = append(result.Documents, *doc)
	}

	logger.With(logger.Fields{
		logger.FieldCount:      len(result.Documents),
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info(ctx, "Generated timesheet documents: %s", strings.Join(result.URLs(), ", "))

	return result, nil
}

func (s *DocumentService) generateGroup(ctx context.Context, g *WeekGroup, approver *domain.User, sig []byte) (*domain.TimesheetDocument, error) {
	first := g.Entries[0]
	if first.EmployeeID == nil || first.Employee == nil {
		return nil, domain.NewValidationError("work entry %d has no employee", first.ID)
	}
	if first.Task == nil || first.Task.ProjectID == nil || first.Task.Project == nil {
		return nil, domain.NewValidationError("task %d of work entry %d has no project", g.Key.TaskID, first.ID)
	}
	task := first.Task
	project := task.Project

	data := &TimesheetData{
		EmployeeID:   *first.EmployeeID,
		EmployeeName: first.Employee.Name,
		TaskID:       task.ID,
		TaskTitle:    task.Title,
		ProjectTitle: project.Title,
		Week:         g.Key.Week,
		Year:         g.Key.Year,
		Entries:      g.Entries,
		ApproverName: approver.Name,
		ApprovedAt:   s.now(),
		Signature:    sig,
	}
	if project.Customer != nil {
		data.CustomerName = project.Customer.Name
	}

	body, err := s.renderer.Render(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("render timesheet for task %d week %d/%d: %w", task.ID, g.Key.Week, g.Key.Year, err)
	}

	key := s.documentKey(data.EmployeeID, *task.ProjectID, task.ID, g.Key.Week, g.Key.Year)
	if err := s.storage.Upload(ctx, key, bytes.NewReader(body), int64(len(body)), s.renderer.ContentType()); err != nil {
		return nil, fmt.Errorf("upload timesheet %s: %w", key, err)
	}

	doc := &domain.TimesheetDocument{
		TaskID:     task.ID,
		WeekNumber: g.Key.Week,
		Year:       g.Key.Year,
		URL:        s.storage.GetURL(key),
	}
	linked, err := s.store.Documents.CreateWithEntries(ctx, doc, g.EntryIDs())
	if err != nil {
		return nil, err
	}

	logger.With(logger.Fields{
		logger.FieldTaskID: task.ID,
		logger.FieldCount:  linked,
	}).Info(ctx, "Timesheet for week %d/%d stored at %s", g.Key.Week, g.Key.Year, doc.URL)

	return doc, nil
}

// documentKey is <prefix>/<employee>/<project>/<task>/KW<week>_<year><ext>.
func (s *DocumentService) documentKey(employeeID, projectID, taskID uint, week, year int) string {
	key := fmt.Sprintf("%d/%d/%d/KW%02d_%d%s", employeeID, projectID, taskID, week, year, s.renderer.Extension())
	if s.keyPrefix == "" {
		return key
	}
	return s.keyPrefix + "/" + key
}
