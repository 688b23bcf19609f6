package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/campusops/testbench/internal/domain"
)

// RequestService orchestrates the provisioning request lifecycle: it owns
// the state transitions, delegates provider calls to a per-environment
// Provisioner, and persists records through the repository.
type RequestService struct {
	repo          domain.RequestRepository
	provisioners  map[string]domain.Provisioner
	publisher     domain.EventPublisher
	validator     domain.TransitionValidator
	rootAccountID int64
}

// NewRequestService creates a service with the given adapters. The
// provisioners map is keyed by environment name; rootAccountID is the
// fallback parent account when a spec requests no sub-account nesting or a
// dependency step failed.
func NewRequestService(
	repo domain.RequestRepository,
	provisioners map[string]domain.Provisioner,
	publisher domain.EventPublisher,
	validator domain.TransitionValidator,
	rootAccountID int64,
) *RequestService {
	return &RequestService{
		repo:          repo,
		provisioners:  provisioners,
		publisher:     publisher,
		validator:     validator,
		rootAccountID: rootAccountID,
	}
}

// Submit validates the spec, creates the request record, and runs the
// resource-creation loop synchronously. Individual provider failures land
// in the record's errors; the call itself only fails on validation or
// persistence problems.
func (s *RequestService) Submit(ctx context.Context, spec domain.RequestSpec) (domain.Request, error) {
	if err := spec.Validate(); err != nil {
		return domain.Request{}, err
	}

	prov, err := s.provisionerFor(spec.Environment)
	if err != nil {
		return domain.Request{}, err
	}

	id, err := newRequestID()
	if err != nil {
		return domain.Request{}, fmt.Errorf("generating request id: %w", err)
	}

	req := domain.NewRequest(id, spec)

	status, err := s.validator.Apply(ctx, req.Status, domain.EventStartProvisioning)
	if err != nil {
		return domain.Request{}, err
	}
	req.Status = status

	if err := s.repo.Create(ctx, req); err != nil {
		return domain.Request{}, fmt.Errorf("creating request record: %w", err)
	}

	if err := s.publisher.Publish(ctx, domain.EventStartProvisioning, req); err != nil {
		return domain.Request{}, fmt.Errorf("publishing event %q: %w", domain.EventStartProvisioning, err)
	}

	s.provision(ctx, prov, &req, spec)

	status, err = s.validator.Apply(ctx, req.Status, domain.EventProvisionComplete)
	if err != nil {
		return domain.Request{}, err
	}
	req.Status = status

	if err := s.repo.Update(ctx, req); err != nil {
		return domain.Request{}, fmt.Errorf("persisting request record: %w", err)
	}

	if err := s.publisher.Publish(ctx, domain.EventProvisionComplete, req); err != nil {
		return domain.Request{}, fmt.Errorf("publishing event %q: %w", domain.EventProvisionComplete, err)
	}

	slog.InfoContext(ctx, "request provisioned",
		"request_id", req.ID,
		"environment", req.Environment,
		"courses", len(req.CreatedResources.Courses),
		"users", len(req.CreatedResources.Users),
		"errors", len(req.CreatedResources.Errors),
	)

	return req, nil
}

// GetByID returns a request by its unique identifier.
func (s *RequestService) GetByID(ctx context.Context, id string) (domain.Request, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns requests matching the given filter, newest first.
func (s *RequestService) List(ctx context.Context, filter domain.ListFilter) ([]domain.Request, error) {
	return s.repo.List(ctx, filter)
}

// Cleanup deletes the courses a request created and marks the record
// cleaned. Users and sub-accounts cannot be deleted through the provider;
// they are reported as skipped, not attempted.
func (s *RequestService) Cleanup(ctx context.Context, id string) (domain.CleanupResult, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.CleanupResult{}, err
	}

	if req.Cleaned {
		return domain.CleanupResult{}, &domain.AlreadyCleanedError{ID: id}
	}

	prov, err := s.provisionerFor(req.Environment)
	if err != nil {
		return domain.CleanupResult{}, err
	}

	result := domain.CleanupResult{}

	for _, course := range req.CreatedResources.Courses {
		if err := prov.DeleteCourse(ctx, course.ID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to delete course %d: %v", course.ID, err))
			continue
		}
		result.DeletedCourses = append(result.DeletedCourses, course.ID)
	}

	for _, user := range req.CreatedResources.Users {
		result.Skipped = append(result.Skipped,
			fmt.Sprintf("user %d (%s) cannot be deleted by the provider", user.ID, user.LoginID))
	}
	for _, sub := range req.CreatedResources.Subaccounts {
		result.Skipped = append(result.Skipped,
			fmt.Sprintf("sub-account %d (%s) cannot be deleted by the provider", sub.ID, sub.Name))
	}

	status, err := s.validator.Apply(ctx, req.Status, domain.EventCleanup)
	if err != nil {
		return domain.CleanupResult{}, err
	}
	req.Status = status
	req.MarkCleaned(result)

	if err := s.repo.Update(ctx, req); err != nil {
		return domain.CleanupResult{}, fmt.Errorf("persisting cleanup result: %w", err)
	}

	if err := s.publisher.Publish(ctx, domain.EventCleanup, req); err != nil {
		return domain.CleanupResult{}, fmt.Errorf("publishing event %q: %w", domain.EventCleanup, err)
	}

	slog.InfoContext(ctx, "request cleaned up",
		"request_id", req.ID,
		"deleted_courses", len(result.DeletedCourses),
		"skipped", len(result.Skipped),
		"errors", len(result.Errors),
	)

	return result, nil
}

// Environments returns the names of the configured environments.
func (s *RequestService) Environments() []string {
	names := make([]string, 0, len(s.provisioners))
	for name := range s.provisioners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnvironmentStatus reads the provider live and reports what currently
// exists under the environment's root account. It can disagree with the
// request store when resources were created or deleted outside this tool.
func (s *RequestService) EnvironmentStatus(ctx context.Context, environment string) (domain.EnvironmentStatus, error) {
	prov, err := s.provisionerFor(environment)
	if err != nil {
		return domain.EnvironmentStatus{}, err
	}

	subaccounts, err := prov.ListSubaccounts(ctx, s.rootAccountID)
	if err != nil {
		return domain.EnvironmentStatus{}, fmt.Errorf("listing sub-accounts: %w", err)
	}

	courses, err := prov.ListCourses(ctx, s.rootAccountID)
	if err != nil {
		return domain.EnvironmentStatus{}, fmt.Errorf("listing courses: %w", err)
	}

	var lastActivity *string
	for _, course := range courses {
		if course.CreatedAt == "" {
			continue
		}
		// Provider timestamps are RFC 3339, so string order is time order.
		if lastActivity == nil || course.CreatedAt > *lastActivity {
			created := course.CreatedAt
			lastActivity = &created
		}
	}

	status := domain.EnvStatusInUse
	if len(subaccounts) == 0 && len(courses) == 0 {
		status = domain.EnvStatusClean
	}

	return domain.EnvironmentStatus{
		Environment:  environment,
		Subaccounts:  len(subaccounts),
		Courses:      len(courses),
		LastActivity: lastActivity,
		Status:       status,
	}, nil
}

func (s *RequestService) provisionerFor(environment string) (domain.Provisioner, error) {
	prov, ok := s.provisioners[environment]
	if !ok {
		return nil, &domain.ValidationError{
			Field:  "environment",
			Reason: fmt.Sprintf("unknown environment %q", environment),
		}
	}
	return prov, nil
}
