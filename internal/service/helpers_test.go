package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/timmy/timesheet/internal/config"
	"github.com/timmy/timesheet/internal/domain"
	"github.com/timmy/timesheet/internal/notify"
	"github.com/timmy/timesheet/internal/repository"
	"github.com/timmy/timesheet/internal/storage"
)

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "test.db"),
		AutoMigrate: true,
	})
	if err != nil {
		t.Fatalf("InitDB() error: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return repository.NewStore(db)
}

type fixture struct {
	store      *repository.Store
	supervisor *domain.User
	other      *domain.User
	employee   *domain.User
	project    *domain.Project
	task       *domain.Task
}

func seed(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := newTestStore(t)

	f := &fixture{
		store:      s,
		supervisor: &domain.User{Name: "Sam Supervisor", Role: domain.RoleSupervisor},
		other:      &domain.User{Name: "Olga Other", Role: domain.RoleSupervisor},
		employee:   &domain.User{Name: "Erin Employee", Role: domain.RoleEmployee},
	}
	for _, u := range []*domain.User{f.supervisor, f.other, f.employee} {
		if err := s.Users.Create(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}

	customer := &domain.Customer{Name: "ACME"}
	if err := s.DB().Create(customer).Error; err != nil {
		t.Fatalf("create customer: %v", err)
	}
	f.project = &domain.Project{Title: "Bridge", CustomerID: &customer.ID}
	if err := s.DB().Create(f.project).Error; err != nil {
		t.Fatalf("create project: %v", err)
	}
	f.task = f.newTask(t, f.supervisor.ID, "Welding")
	return f
}

func (f *fixture) newTask(t *testing.T, supervisorID uint, title string) *domain.Task {
	t.Helper()
	task := &domain.Task{SupervisorID: supervisorID, ProjectID: &f.project.ID, Title: title}
	if err := f.store.Tasks.Create(context.Background(), task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func (f *fixture) newEntry(t *testing.T, task *domain.Task, date string) *domain.WorkEntry {
	t.Helper()
	d, err := domain.ParseDate(date)
	if err != nil {
		t.Fatal(err)
	}
	start := d.Add(9 * time.Hour)
	end := d.Add(17 * time.Hour)
	distance := 12.5
	e := &domain.WorkEntry{
		EmployeeID:         &f.employee.ID,
		TaskID:             &task.ID,
		WorkDate:           d,
		StartTime:          &start,
		EndTime:            &end,
		PauseMinutes:       30,
		Distance:           &distance,
		ConfirmationStatus: domain.ConfirmationPending,
		Status:             domain.DefaultEntryStatus,
	}
	if err := f.store.Entries.Create(context.Background(), e); err != nil {
		t.Fatalf("create entry: %v", err)
	}
	return e
}

func (f *fixture) newSignature(t *testing.T, st storage.ObjectStorage) *domain.Signature {
	t.Helper()
	key := "signatures/sam.png"
	data := testPNG(t, 640, 240)
	if err := st.Upload(context.Background(), key, bytes.NewReader(data), int64(len(data)), "image/png"); err != nil {
		t.Fatalf("upload signature: %v", err)
	}
	sig := &domain.Signature{SupervisorID: f.supervisor.ID, URL: st.GetURL(key), IsActive: true}
	if err := f.store.Signatures.Create(context.Background(), sig); err != nil {
		t.Fatalf("create signature: %v", err)
	}
	return sig
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.Black)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func decision(id uint, status domain.ConfirmationStatus, date string) EntryDecision {
	return EntryDecision{ID: id, ConfirmationStatus: status, WorkDate: date}
}

// recordingNotifier collects intents synchronously.
type recordingNotifier struct {
	mu         sync.Mutex
	approvals  []notify.Intent
	rejections []notify.Intent
	fail       bool
}

func (n *recordingNotifier) NotifyApproval(employeeID, entryID, taskID uint, taskTitle string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.approvals = append(n.approvals, notify.Approval(employeeID, entryID, taskID, taskTitle))
	if n.fail {
		return notify.ErrQueueFull
	}
	return nil
}

func (n *recordingNotifier) NotifyWeekRejection(employeeID uint, entryIDs []uint, taskID uint, reason, taskTitle string, week, year int, projectID uint, problematic []notify.ProblematicDay) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejections = append(n.rejections, notify.WeekRejection(employeeID, entryIDs, taskID, reason, taskTitle, week, year, projectID, problematic))
	if n.fail {
		return notify.ErrQueueFull
	}
	return nil
}

// flakyStorage fails the first failures existence checks.
type flakyStorage struct {
	*storage.MemoryStorage
	failures int32
	calls    int32
}

func (s *flakyStorage) Exists(ctx context.Context, key string) (bool, error) {
	if atomic.AddInt32(&s.calls, 1) <= atomic.LoadInt32(&s.failures) {
		return false, errors.New("connection reset by peer")
	}
	return s.MemoryStorage.Exists(ctx, key)
}

func (s *flakyStorage) Calls() int {
	return int(atomic.LoadInt32(&s.calls))
}

func newFlakyStorage(failures int) *flakyStorage {
	return &flakyStorage{MemoryStorage: storage.NewMemoryStorage("test", ""), failures: int32(failures)}
}

func newDocumentService(t *testing.T, f *fixture, st storage.ObjectStorage, attempts int) *DocumentService {
	t.Helper()
	renderer, err := NewExcelRenderer(RenderConfig{Title: "Timesheet", CompanyName: "Timmy GmbH"})
	if err != nil {
		t.Fatal(err)
	}
	fetcher := NewSignatureFetcher(st, SignatureConfig{MaxAttempts: attempts, RetryDelay: 10 * time.Millisecond})
	return NewDocumentService(f.store, st, fetcher, renderer, "timesheets")
}

func waitForJob(t *testing.T, r *JobRegistry, id string) domain.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := r.Get(id)
		if ok && job.Status.IsTerminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return domain.Job{}
}
