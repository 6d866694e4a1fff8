package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/timmy/timesheet/internal/config"
	"github.com/timmy/timesheet/internal/domain"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := InitDB(&config.DatabaseConfig{
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
	return db
}

type fixture struct {
	supervisor *domain.User
	employee   *domain.User
	task       *domain.Task
}

func seed(t *testing.T, s *Store) fixture {
	t.Helper()
	ctx := context.Background()

	sup := &domain.User{Name: "Sam Supervisor", Role: domain.RoleSupervisor}
	emp := &domain.User{Name: "Erin Employee", Role: domain.RoleEmployee}
	for _, u := range []*domain.User{sup, emp} {
		if err := s.Users.Create(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}

	customer := &domain.Customer{Name: "ACME"}
	if err := s.DB().Create(customer).Error; err != nil {
		t.Fatalf("create customer: %v", err)
	}
	project := &domain.Project{Title: "Bridge", CustomerID: &customer.ID}
	if err := s.DB().Create(project).Error; err != nil {
		t.Fatalf("create project: %v", err)
	}
	task := &domain.Task{SupervisorID: sup.ID, ProjectID: &project.ID, Title: "Welding"}
	if err := s.Tasks.Create(ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	return fixture{supervisor: sup, employee: emp, task: task}
}

func newEntry(t *testing.T, s *Store, f fixture, date string) *domain.WorkEntry {
	t.Helper()
	d, err := domain.ParseDate(date)
	if err != nil {
		t.Fatal(err)
	}
	start := d.Add(9 * time.Hour)
	end := d.Add(17 * time.Hour)
	e := &domain.WorkEntry{
		EmployeeID:         &f.employee.ID,
		TaskID:             &f.task.ID,
		WorkDate:           d,
		StartTime:          &start,
		EndTime:            &end,
		PauseMinutes:       30,
		ConfirmationStatus: domain.ConfirmationPending,
		Status:             domain.DefaultEntryStatus,
	}
	if err := s.Entries.Create(context.Background(), e); err != nil {
		t.Fatalf("create entry: %v", err)
	}
	return e
}

func TestWorkEntryGetByIDNotFound(t *testing.T) {
	s := NewStore(newTestDB(t))

	_, err := s.Entries.GetByID(context.Background(), 404)
	if !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestUpdateConfirmationGuardsConfirmedEntries(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newTestDB(t))
	f := seed(t, s)
	e := newEntry(t, s, f, "2025-06-02")

	upd := ConfirmationUpdate{
		ConfirmationStatus: domain.ConfirmationConfirmed,
		Status:             "approved",
		TaskID:             f.task.ID,
		EmployeeID:         f.employee.ID,
	}
	got, err := s.Entries.UpdateConfirmation(ctx, e.ID, upd)
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	if got.ConfirmationStatus != domain.ConfirmationConfirmed || got.Status != "approved" {
		t.Errorf("unexpected row after update: %+v", got)
	}
	if got.WorkDate.String() != "2025-06-02" {
		t.Errorf("work date round trip = %q", got.WorkDate.String())
	}

	reason := "wrong"
	upd.ConfirmationStatus = domain.ConfirmationRejected
	upd.RejectionReason = &reason
	_, err = s.Entries.UpdateConfirmation(ctx, e.ID, upd)
	if !domain.IsKind(err, domain.KindImmutableState) {
		t.Fatalf("expected immutable_state, got %v", err)
	}

	stored, _ := s.Entries.GetByID(ctx, e.ID)
	if stored.ConfirmationStatus != domain.ConfirmationConfirmed || stored.RejectionReason != nil {
		t.Errorf("confirmed entry was mutated: %+v", stored)
	}
}

func TestUpdateConfirmationMissingEntry(t *testing.T) {
	s := NewStore(newTestDB(t))
	_, err := s.Entries.UpdateConfirmation(context.Background(), 77, ConfirmationUpdate{
		ConfirmationStatus: domain.ConfirmationConfirmed,
	})
	if !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestUpdateConfirmationClearsRejectionReason(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newTestDB(t))
	f := seed(t, s)
	e := newEntry(t, s, f, "2025-06-03")

	reason := "incorrect hours"
	if _, err := s.Entries.UpdateConfirmation(ctx, e.ID, ConfirmationUpdate{
		ConfirmationStatus: domain.ConfirmationRejected,
		RejectionReason:    &reason,
		Status:             "pending",
		TaskID:             f.task.ID,
		EmployeeID:         f.employee.ID,
	}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Entries.UpdateConfirmation(ctx, e.ID, ConfirmationUpdate{
		ConfirmationStatus: domain.ConfirmationPending,
		Status:             "pending",
		TaskID:             f.task.ID,
		EmployeeID:         f.employee.ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.RejectionReason != nil {
		t.Errorf("expected rejection reason to be cleared, got %q", *got.RejectionReason)
	}
}

func TestListConfirmedDetailedPreloadsRelations(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newTestDB(t))
	f := seed(t, s)
	later := newEntry(t, s, f, "2025-06-04")
	earlier := newEntry(t, s, f, "2025-06-02")
	pending := newEntry(t, s, f, "2025-06-03")

	for _, e := range []*domain.WorkEntry{later, earlier} {
		if _, err := s.Entries.UpdateConfirmation(ctx, e.ID, ConfirmationUpdate{
			ConfirmationStatus: domain.ConfirmationConfirmed,
			Status:             "pending",
			TaskID:             f.task.ID,
			EmployeeID:         f.employee.ID,
		}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Entries.ListConfirmedDetailed(ctx, []uint{later.ID, earlier.ID, pending.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 confirmed entries, got %d", len(got))
	}
	if got[0].ID != earlier.ID {
		t.Errorf("expected entries ordered by work date")
	}
	e := got[0]
	if e.Employee == nil || e.Employee.Name != "Erin Employee" {
		t.Errorf("employee not preloaded: %+v", e.Employee)
	}
	if e.Task == nil || e.Task.Project == nil || e.Task.Project.Customer == nil {
		t.Fatalf("task chain not preloaded: %+v", e.Task)
	}
	if e.Task.Project.Customer.Name != "ACME" {
		t.Errorf("customer = %q", e.Task.Project.Customer.Name)
	}
}

func TestSignatureGetActiveForSupervisor(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newTestDB(t))
	f := seed(t, s)

	active := &domain.Signature{SupervisorID: f.supervisor.ID, URL: "memory://b/sig.png", IsActive: true}
	if err := s.Signatures.Create(ctx, active); err != nil {
		t.Fatal(err)
	}
	inactive := &domain.Signature{SupervisorID: f.supervisor.ID, URL: "memory://b/old.png", IsActive: true}
	if err := s.Signatures.Create(ctx, inactive); err != nil {
		t.Fatal(err)
	}
	if err := s.DB().Model(inactive).Update("is_active", false).Error; err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		id      uint
		actor   uint
		wantErr bool
	}{
		{"own active", active.ID, f.supervisor.ID, false},
		{"inactive", inactive.ID, f.supervisor.ID, true},
		{"foreign", active.ID, f.employee.ID, true},
		{"missing", 999, f.supervisor.ID, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Signatures.GetActiveForSupervisor(ctx, tt.id, tt.actor)
			if tt.wantErr && !domain.IsKind(err, domain.KindNotFound) {
				t.Errorf("expected not_found, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCreateWithEntriesLinksConfirmedOnly(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newTestDB(t))
	f := seed(t, s)
	confirmed := newEntry(t, s, f, "2025-06-02")
	pending := newEntry(t, s, f, "2025-06-03")
	if _, err := s.Entries.UpdateConfirmation(ctx, confirmed.ID, ConfirmationUpdate{
		ConfirmationStatus: domain.ConfirmationConfirmed,
		Status:             "pending",
		TaskID:             f.task.ID,
		EmployeeID:         f.employee.ID,
	}); err != nil {
		t.Fatal(err)
	}

	doc := &domain.TimesheetDocument{TaskID: f.task.ID, WeekNumber: 23, Year: 2025, URL: "memory://b/doc.xlsx"}
	linked, err := s.Documents.CreateWithEntries(ctx, doc, []uint{confirmed.ID, pending.ID})
	if err != nil {
		t.Fatal(err)
	}
	if linked != 1 {
		t.Errorf("linked = %d, want 1", linked)
	}
	if doc.ID == 0 {
		t.Fatal("expected document id to be set")
	}

	got, _ := s.Entries.GetByID(ctx, confirmed.ID)
	if got.TimesheetID == nil || *got.TimesheetID != doc.ID {
		t.Errorf("confirmed entry not linked: %+v", got.TimesheetID)
	}
	got, _ = s.Entries.GetByID(ctx, pending.ID)
	if got.TimesheetID != nil {
		t.Errorf("pending entry must not be linked")
	}

	docs, err := s.Documents.ListByGroup(ctx, f.task.ID, 23, 2025)
	if err != nil || len(docs) != 1 {
		t.Fatalf("ListByGroup() = %v, %v", docs, err)
	}
}

func TestStoreTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newTestDB(t))
	f := seed(t, s)
	e := newEntry(t, s, f, "2025-06-02")

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(tx *Store) error {
		if _, err := tx.Entries.UpdateConfirmation(ctx, e.ID, ConfirmationUpdate{
			ConfirmationStatus: domain.ConfirmationConfirmed,
			Status:             "pending",
			TaskID:             f.task.ID,
			EmployeeID:         f.employee.ID,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, _ := s.Entries.GetByID(ctx, e.ID)
	if got.ConfirmationStatus != domain.ConfirmationPending {
		t.Errorf("expected rollback, status = %s", got.ConfirmationStatus)
	}
}
