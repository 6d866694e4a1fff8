package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/timesheet/internal/api/middleware"
	"github.com/timmy/timesheet/internal/config"
	"github.com/timmy/timesheet/internal/domain"
	"github.com/timmy/timesheet/internal/notify"
	"github.com/timmy/timesheet/internal/repository"
	"github.com/timmy/timesheet/internal/service"
	"github.com/timmy/timesheet/internal/storage"
)

const secret = "router-test-secret"

type testApp struct {
	router     *gin.Engine
	store      *repository.Store
	supervisor *domain.User
	task       *domain.Task
	employee   *domain.User
	signature  *domain.Signature
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()

	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "api.db"),
		AutoMigrate: true,
	})
	if err != nil {
		t.Fatalf("InitDB() error: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	store := repository.NewStore(db)

	app := &testApp{
		store:      store,
		supervisor: &domain.User{Name: "Sam Supervisor", Role: domain.RoleSupervisor},
		employee:   &domain.User{Name: "Erin Employee", Role: domain.RoleEmployee},
	}
	for _, u := range []*domain.User{app.supervisor, app.employee} {
		if err := store.Users.Create(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	project := &domain.Project{Title: "Bridge"}
	if err := store.DB().Create(project).Error; err != nil {
		t.Fatal(err)
	}
	app.task = &domain.Task{SupervisorID: app.supervisor.ID, ProjectID: &project.ID, Title: "Welding"}
	if err := store.Tasks.Create(ctx, app.task); err != nil {
		t.Fatal(err)
	}

	st := storage.NewMemoryStorage("test", "https://cdn.example.com")
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 200, 80))); err != nil {
		t.Fatal(err)
	}
	if err := st.Upload(ctx, "signatures/sam.png", bytes.NewReader(buf.Bytes()), int64(buf.Len()), "image/png"); err != nil {
		t.Fatal(err)
	}
	app.signature = &domain.Signature{SupervisorID: app.supervisor.ID, URL: st.GetURL("signatures/sam.png"), IsActive: true}
	if err := store.Signatures.Create(ctx, app.signature); err != nil {
		t.Fatal(err)
	}

	renderer, err := service.NewExcelRenderer(service.RenderConfig{Title: "Timesheet"})
	if err != nil {
		t.Fatal(err)
	}
	fetcher := service.NewSignatureFetcher(st, service.SignatureConfig{MaxAttempts: 3, RetryDelay: 10 * time.Millisecond})
	documents := service.NewDocumentService(store, st, fetcher, renderer, "timesheets")
	registry := service.NewJobRegistry(time.Hour)
	orchestrator := service.NewOrchestrator(registry, documents, 10*time.Second)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		orchestrator.Shutdown(ctx)
	})
	confirmation := service.NewConfirmationService(store, noopNotifier{}, false)
	timesheets := service.NewTimesheetService(store, confirmation, registry, orchestrator)

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "test"},
		Auth:   config.AuthConfig{JWTSecret: secret, RequiredRole: string(domain.RoleSupervisor)},
	}
	app.router = SetupRouter(cfg, RouterDeps{Timesheets: timesheets, DB: sqlDB})
	return app
}

func (a *testApp) newEntry(t *testing.T, date string) *domain.WorkEntry {
	t.Helper()
	d, err := domain.ParseDate(date)
	if err != nil {
		t.Fatal(err)
	}
	start, end := d.Add(8*time.Hour), d.Add(16*time.Hour)
	e := &domain.WorkEntry{
		EmployeeID:         &a.employee.ID,
		TaskID:             &a.task.ID,
		WorkDate:           d,
		StartTime:          &start,
		EndTime:            &end,
		ConfirmationStatus: domain.ConfirmationPending,
		Status:             domain.DefaultEntryStatus,
	}
	if err := a.store.Entries.Create(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	return e
}

func (a *testApp) do(t *testing.T, method, target string, body interface{}, token string) (int, map[string]interface{}) {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid json %q: %v", w.Body.String(), err)
	}
	return w.Code, out
}

type noopNotifier struct{}

func (noopNotifier) NotifyApproval(employeeID, entryID, taskID uint, taskTitle string) error {
	return nil
}

func (noopNotifier) NotifyWeekRejection(employeeID uint, entryIDs []uint, taskID uint, reason, taskTitle string, week, year int, projectID uint, problematic []notify.ProblematicDay) error {
	return nil
}

func TestTimesheetFlow(t *testing.T) {
	app := newTestApp(t)
	token, err := middleware.GenerateToken(app.supervisor.ID, "supervisor", secret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	e := app.newEntry(t, "2025-06-02")
	body := map[string]interface{}{
		"entries":     []map[string]interface{}{{"id": e.ID, "confirmation_status": "confirmed", "work_date": "2025-06-02"}},
		"signatureId": app.signature.ID,
	}

	code, resp := app.do(t, http.MethodPost, "/timesheet", body, token)
	if code != http.StatusAccepted {
		t.Fatalf("submit status = %d, body = %v", code, resp)
	}
	jobID, _ := resp["jobId"].(string)
	if jobID == "" {
		t.Fatalf("missing jobId: %v", resp)
	}

	var status map[string]interface{}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		code, status = app.do(t, http.MethodGet, "/timesheet?jobId="+jobID, nil, token)
		if code != http.StatusOK {
			t.Fatalf("poll status = %d", code)
		}
		if status["status"] != "processing" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	wantURL := fmt.Sprintf("https://cdn.example.com/timesheets/%d/%d/%d/KW23_2025.xlsx",
		app.employee.ID, *app.task.ProjectID, app.task.ID)
	if status["status"] != "completed" || status["timesheetUrl"] != wantURL {
		t.Fatalf("job = %v, want url %s", status, wantURL)
	}

	code, resp = app.do(t, http.MethodPost, "/timesheet", body, token)
	if code != http.StatusCreated || resp["timesheetUrl"] != wantURL {
		t.Errorf("cached submit = %d %v", code, resp)
	}
}

func TestTimesheetRequiresSupervisor(t *testing.T) {
	app := newTestApp(t)
	employeeToken, _ := middleware.GenerateToken(app.employee.ID, "employee", secret, time.Hour)

	for name, token := range map[string]string{"anonymous": "", "employee": employeeToken} {
		t.Run(name, func(t *testing.T) {
			code, _ := app.do(t, http.MethodGet, "/timesheet?jobId=x", nil, token)
			if code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", code)
			}
		})
	}
}

func TestHealthIsPublic(t *testing.T) {
	app := newTestApp(t)
	code, resp := app.do(t, http.MethodGet, "/health", nil, "")
	if code != http.StatusOK || resp["status"] != "ok" {
		t.Errorf("health = %d %v", code, resp)
	}
}
