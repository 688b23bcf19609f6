package fsm_test

import (
	"context"
	"errors"
	"testing"

	adapter "github.com/campusops/testbench/internal/adapter/fsm"
	"github.com/campusops/testbench/internal/domain"
)

func TestValidator_AllTransitions(t *testing.T) {
	v := adapter.New()
	ctx := context.Background()

	for _, tr := range domain.Transitions {
		dst, err := v.Apply(ctx, tr.Src, tr.Event)
		if err != nil {
			t.Errorf("Apply(%q, %q) unexpected error: %v", tr.Src, tr.Event, err)
			continue
		}
		if dst != tr.Dst {
			t.Errorf("Apply(%q, %q) = %q, want %q", tr.Src, tr.Event, dst, tr.Dst)
		}
	}
}

func TestValidator_InvalidTransition(t *testing.T) {
	v := adapter.New()
	ctx := context.Background()

	// Can't clean up while still provisioning.
	_, err := v.Apply(ctx, domain.StatusProvisioning, domain.EventCleanup)
	var trErr *domain.TransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if trErr.Event != domain.EventCleanup {
		t.Errorf("event = %q, want %q", trErr.Event, domain.EventCleanup)
	}
	if trErr.Current != domain.StatusProvisioning {
		t.Errorf("current = %q, want %q", trErr.Current, domain.StatusProvisioning)
	}
}

func TestValidator_FullLifecycle(t *testing.T) {
	v := adapter.New()
	ctx := context.Background()

	steps := []struct {
		from  domain.Status
		event domain.Event
		want  domain.Status
	}{
		{domain.StatusSubmitted, domain.EventStartProvisioning, domain.StatusProvisioning},
		{domain.StatusProvisioning, domain.EventProvisionComplete, domain.StatusCompleted},
		{domain.StatusCompleted, domain.EventCleanup, domain.StatusCleaned},
	}

	for _, step := range steps {
		got, err := v.Apply(ctx, step.from, step.event)
		if err != nil {
			t.Fatalf("Apply(%q, %q) error: %v", step.from, step.event, err)
		}
		if got != step.want {
			t.Errorf("Apply(%q, %q) = %q, want %q", step.from, step.event, got, step.want)
		}
	}
}

func TestValidator_CleanedIsTerminal(t *testing.T) {
	v := adapter.New()
	ctx := context.Background()

	for _, event := range []domain.Event{
		domain.EventStartProvisioning,
		domain.EventProvisionComplete,
		domain.EventCleanup,
	} {
		if _, err := v.Apply(ctx, domain.StatusCleaned, event); err == nil {
			t.Errorf("Apply(cleaned, %q) should fail, cleaned is terminal", event)
		}
	}
}
