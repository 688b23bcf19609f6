package otel_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	adapter "github.com/campusops/testbench/internal/adapter/otel"
	"github.com/campusops/testbench/internal/domain"
)

// --- Test tracer setup ---

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter
}

// --- Mock repository ---

type mockRepo struct {
	requests map[string]domain.Request
}

func newMockRepo() *mockRepo {
	return &mockRepo{requests: make(map[string]domain.Request)}
}

func (m *mockRepo) Create(_ context.Context, req domain.Request) error {
	m.requests[req.ID] = req
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (domain.Request, error) {
	req, ok := m.requests[id]
	if !ok {
		return domain.Request{}, domain.ErrRequestNotFound
	}
	return req, nil
}

func (m *mockRepo) List(_ context.Context, _ domain.ListFilter) ([]domain.Request, error) {
	out := make([]domain.Request, 0, len(m.requests))
	for _, req := range m.requests {
		out = append(out, req)
	}
	return out, nil
}

func (m *mockRepo) Update(_ context.Context, req domain.Request) error {
	if _, ok := m.requests[req.ID]; !ok {
		return domain.ErrRequestNotFound
	}
	m.requests[req.ID] = req
	return nil
}

func testRequest(id string) domain.Request {
	return domain.NewRequest(id, domain.RequestSpec{
		Scenario:    "basic_course",
		Requester:   "j.tester",
		Environment: "development",
	})
}

// --- Tests ---

func TestTracingRepository_Create_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockRepo()
	repo := adapter.NewTracingRepository(inner)

	if err := repo.Create(context.Background(), testRequest("REQ-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "RequestRepository.Create" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "RequestRepository.Create")
	}

	assertAttribute(t, spans[0], "request.id", "REQ-1")
	assertAttribute(t, spans[0], "request.environment", "development")
}

func TestTracingRepository_GetByID_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockRepo()
	repo := adapter.NewTracingRepository(inner)

	inner.requests["REQ-1"] = testRequest("REQ-1")

	got, err := repo.GetByID(context.Background(), "REQ-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "REQ-1" {
		t.Errorf("ID = %q, want %q", got.ID, "REQ-1")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "RequestRepository.GetByID" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "RequestRepository.GetByID")
	}
}

func TestTracingRepository_GetByID_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockRepo()
	repo := adapter.NewTracingRepository(inner)

	_, err := repo.GetByID(context.Background(), "REQ-nonexistent")
	if !errors.Is(err, domain.ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}

	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}

	if len(spans[0].Events) == 0 {
		t.Error("expected error event on span")
	}
}

func TestTracingRepository_List_RecordsResultCount(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockRepo()
	repo := adapter.NewTracingRepository(inner)

	inner.requests["REQ-1"] = testRequest("REQ-1")
	inner.requests["REQ-2"] = testRequest("REQ-2")

	requests, err := repo.List(context.Background(), domain.ListFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(requests) != 2 {
		t.Errorf("got %d requests, want 2", len(requests))
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}

	assertAttribute(t, spans[0], "result.count", "2")
}

func TestTracingRepository_Update_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockRepo()
	repo := adapter.NewTracingRepository(inner)

	req := testRequest("REQ-1")
	inner.requests["REQ-1"] = req

	req.Status = domain.StatusCompleted
	if err := repo.Update(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "RequestRepository.Update" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "RequestRepository.Update")
	}

	assertAttribute(t, spans[0], "request.status", "completed")
}

// assertAttribute checks that a span has an attribute with the given key and string value.
func assertAttribute(t *testing.T, span tracetest.SpanStub, key, want string) {
	t.Helper()
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			got := attr.Value.Emit()
			if got != want {
				t.Errorf("attribute %q = %q, want %q", key, got, want)
			}
			return
		}
	}
	t.Errorf("attribute %q not found on span %q", key, span.Name)
}
