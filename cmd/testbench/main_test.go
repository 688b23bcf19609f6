package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/campusops/testbench/internal/adapter/fsm"
	handler "github.com/campusops/testbench/internal/adapter/http"
	"github.com/campusops/testbench/internal/adapter/sqlite"
	"github.com/campusops/testbench/internal/app"
	"github.com/campusops/testbench/internal/domain"
)

// testPublisher is a local EventPublisher for the smoke test.
// The smoke test verifies HTTP wiring, not River.
type testPublisher struct{}

func (p *testPublisher) Publish(_ context.Context, _ domain.Event, _ domain.Request) error {
	return nil
}

// testProvisioner is a local Provisioner for the smoke test. The smoke test
// never provisions, so every method is a stub.
type testProvisioner struct{}

func (p *testProvisioner) CreateSubaccount(_ context.Context, _ int64, name string, _ map[string]string) (domain.Subaccount, error) {
	return domain.Subaccount{ID: 1, Name: name}, nil
}

func (p *testProvisioner) CreateCourse(_ context.Context, accountID int64, name, code string, _ map[string]string) (domain.Course, error) {
	return domain.Course{ID: 1, Name: name, CourseCode: code, AccountID: accountID}, nil
}

func (p *testProvisioner) CreateUser(_ context.Context, _ int64, name, email, loginID string, _ map[string]string) (domain.User, error) {
	return domain.User{ID: 1, Name: name, Email: email, LoginID: loginID}, nil
}

func (p *testProvisioner) EnrollUser(_ context.Context, courseID, userID int64, role string) (domain.Enrollment, error) {
	return domain.Enrollment{ID: 1, CourseID: courseID, UserID: userID, Role: role}, nil
}

func (p *testProvisioner) CreateTerm(_ context.Context, _ int64, name, startAt, endAt string) (domain.Term, error) {
	return domain.Term{ID: 1, Name: name, StartAt: startAt, EndAt: endAt}, nil
}

func (p *testProvisioner) DeleteCourse(_ context.Context, _ int64) error { return nil }

func (p *testProvisioner) ListSubaccounts(_ context.Context, _ int64) ([]domain.Subaccount, error) {
	return nil, nil
}

func (p *testProvisioner) ListCourses(_ context.Context, _ int64) ([]domain.Course, error) {
	return nil, nil
}

// TestSmoke wires the full stack like main() and verifies it responds.
func TestSmoke(t *testing.T) {
	dbPath := t.TempDir() + "/test.db"

	repo, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("database: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	svc := app.NewRequestService(
		repo,
		map[string]domain.Provisioner{"development": &testProvisioner{}},
		&testPublisher{},
		fsm.New(),
		1,
	)

	router := chi.NewMux()
	api := humachi.New(router, huma.DefaultConfig("testbench", "0.1.0"))
	handler.Register(api, svc)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	// Verify the server responds to list requests.
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/api/v1/requests", nil)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/v1/requests failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var requests []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&requests); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(requests) != 0 {
		t.Errorf("got %d requests, want 0 (empty database)", len(requests))
	}
}

// TestRun exercises the real run() function end-to-end: OTel, River, HTTP
// server, and graceful shutdown. It uses stdout OTel exporter and a temp
// database to avoid external dependencies.
func TestRun(t *testing.T) {
	t.Setenv("CANVAS_API_TOKEN", "test-token")
	t.Setenv("TEST_ENVIRONMENTS", "development=https://dev.canvas.invalid")
	t.Setenv("DATABASE_PATH", t.TempDir()+"/test-run.db")
	t.Setenv("PORT", "19876")
	t.Setenv("OTEL_EXPORTER", "stdout")
	t.Setenv("OTEL_ENVIRONMENT", "test")

	// Discard OTel stdout exporter output during the test.
	origStdout := os.Stdout
	devNull, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatalf("opening /dev/null: %v", err)
	}
	os.Stdout = devNull
	t.Cleanup(func() {
		os.Stdout = origStdout
		devNull.Close()
	})

	errCh := make(chan error, 1)
	go func() { errCh <- run() }()

	// Wait for the HTTP server to become ready.
	serverURL := "http://localhost:19876"
	ready := false
	for i := 0; i < 50; i++ {
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, serverURL+"/api/v1/health", nil)
		resp, reqErr := http.DefaultClient.Do(req)
		if reqErr == nil {
			resp.Body.Close()
			ready = true
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if !ready {
		t.Fatal("server did not start within 5 seconds")
	}

	// Verify the API responds correctly.
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, serverURL+"/api/v1/requests", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/v1/requests failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	// Send SIGINT to trigger graceful shutdown.
	proc, err := os.FindProcess(os.Getpid())
	if err != nil {
		t.Fatalf("finding process: %v", err)
	}
	if err := proc.Signal(syscall.SIGINT); err != nil {
		t.Fatalf("sending SIGINT: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run() returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run() did not exit within 10 seconds")
	}
}

// TestRun_InvalidDB verifies run() returns an error for an invalid database path.
func TestRun_InvalidDB(t *testing.T) {
	t.Setenv("CANVAS_API_TOKEN", "test-token")
	t.Setenv("TEST_ENVIRONMENTS", "development=https://dev.canvas.invalid")
	t.Setenv("DATABASE_PATH", "/nonexistent/path/db.sqlite")
	t.Setenv("PORT", "19877")
	t.Setenv("OTEL_EXPORTER", "stdout")
	t.Setenv("OTEL_ENVIRONMENT", "test")

	// Discard OTel stdout output.
	origStdout := os.Stdout
	devNull, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatalf("opening /dev/null: %v", err)
	}
	os.Stdout = devNull
	t.Cleanup(func() {
		os.Stdout = origStdout
		devNull.Close()
	})

	if err := run(); err == nil {
		t.Fatal("expected error for invalid database path, got nil")
	}
}
