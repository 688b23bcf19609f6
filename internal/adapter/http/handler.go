package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/campusops/testbench/internal/app"
	"github.com/campusops/testbench/internal/domain"
)

const timeLayout = "2006-01-02T15:04:05Z"

// RequestResponse is the API representation of a provisioning request.
type RequestResponse struct {
	ID               string                  `json:"id" doc:"Unique request identifier"`
	Scenario         string                  `json:"scenario" doc:"Scenario tag describing the requested setup"`
	Requester        string                  `json:"requester" doc:"Who asked for the environment"`
	Environment      string                  `json:"environment" doc:"Target environment name"`
	StartDate        string                  `json:"start_date,omitempty" doc:"Requested start date"`
	EndDate          string                  `json:"end_date,omitempty" doc:"Requested end date"`
	Notes            string                  `json:"notes,omitempty" doc:"Free-form operator notes"`
	Status           string                  `json:"status" doc:"Lifecycle state"`
	CreatedAt        string                  `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	CreatedResources domain.CreatedResources `json:"created_resources" doc:"Resources created at the provider"`
	Cleaned          bool                    `json:"cleaned" doc:"Whether cleanup has run"`
	CleanedAt        *string                 `json:"cleaned_at,omitempty" doc:"Cleanup timestamp (ISO 8601)"`
	CleanupResults   *domain.CleanupResult   `json:"cleanup_results,omitempty" doc:"Result of the cleanup run"`
}

func toRequestResponse(r domain.Request) RequestResponse {
	resp := RequestResponse{
		ID:               r.ID,
		Scenario:         r.Scenario,
		Requester:        r.Requester,
		Environment:      r.Environment,
		StartDate:        r.StartDate,
		EndDate:          r.EndDate,
		Notes:            r.Notes,
		Status:           string(r.Status),
		CreatedAt:        r.CreatedAt.Format(timeLayout),
		CreatedResources: r.CreatedResources,
		Cleaned:          r.Cleaned,
		CleanupResults:   r.CleanupResults,
	}
	if r.CleanedAt != nil {
		cleanedAt := r.CleanedAt.Format(timeLayout)
		resp.CleanedAt = &cleanedAt
	}
	return resp
}

// RequestSummary is the list representation: metadata plus resource counts,
// without the full resource payloads.
type RequestSummary struct {
	ID          string `json:"id" doc:"Unique request identifier"`
	Scenario    string `json:"scenario" doc:"Scenario tag describing the requested setup"`
	Requester   string `json:"requester" doc:"Who asked for the environment"`
	Environment string `json:"environment" doc:"Target environment name"`
	Status      string `json:"status" doc:"Lifecycle state"`
	CreatedAt   string `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	Cleaned     bool   `json:"cleaned" doc:"Whether cleanup has run"`
	Subaccounts int    `json:"subaccounts" doc:"Number of sub-accounts created"`
	Courses     int    `json:"courses" doc:"Number of courses created"`
	Users       int    `json:"users" doc:"Number of users created"`
	Enrollments int    `json:"enrollments" doc:"Number of enrollments created"`
	Errors      int    `json:"errors" doc:"Number of per-resource failures"`
}

func toRequestSummary(r domain.Request) RequestSummary {
	return RequestSummary{
		ID:          r.ID,
		Scenario:    r.Scenario,
		Requester:   r.Requester,
		Environment: r.Environment,
		Status:      string(r.Status),
		CreatedAt:   r.CreatedAt.Format(timeLayout),
		Cleaned:     r.Cleaned,
		Subaccounts: len(r.CreatedResources.Subaccounts),
		Courses:     len(r.CreatedResources.Courses),
		Users:       len(r.CreatedResources.Users),
		Enrollments: len(r.CreatedResources.Enrollments),
		Errors:      len(r.CreatedResources.Errors),
	}
}

// --- Submit Request ---

type SubmitRequestInput struct {
	Body domain.RequestSpec
}

type SubmitRequestOutput struct {
	Body RequestResponse
}

// --- Get Request ---

type GetRequestInput struct {
	ID string `path:"id" doc:"Request ID"`
}

type GetRequestOutput struct {
	Body RequestResponse
}

// --- List Requests ---

type ListRequestsInput struct {
	Status      string `query:"status" required:"false" enum:"submitted,provisioning,completed,cleaned" doc:"Filter by lifecycle state"`
	Environment string `query:"environment" required:"false" doc:"Filter by environment"`
	Limit       int    `query:"limit" required:"false" default:"50" doc:"Max results"`
	Offset      int    `query:"offset" required:"false" default:"0" doc:"Pagination offset"`
}

type ListRequestsOutput struct {
	Body []RequestSummary
}

// --- Cleanup Request ---

type CleanupRequestInput struct {
	ID string `path:"id" doc:"Request ID"`
}

type CleanupResponse struct {
	RequestID      string   `json:"request_id" doc:"Request that was cleaned up"`
	DeletedCourses []int64  `json:"deleted_courses" doc:"Provider IDs of deleted courses"`
	Skipped        []string `json:"skipped" doc:"Resources the provider cannot delete"`
	Errors         []string `json:"errors" doc:"Per-resource deletion failures"`
}

type CleanupRequestOutput struct {
	Body CleanupResponse
}

// --- Environments ---

type ListEnvironmentsOutput struct {
	Body struct {
		Environments []string `json:"environments" doc:"Configured environment names"`
	}
}

type EnvironmentStatusInput struct {
	Environment string `path:"environment" doc:"Environment name"`
}

type EnvironmentStatusOutput struct {
	Body domain.EnvironmentStatus
}

// --- Health ---

type HealthOutput struct {
	Body struct {
		Status string `json:"status" doc:"Service health"`
	}
}

// Register adds all request API routes to the Huma API.
func Register(api huma.API, svc *app.RequestService) {
	huma.Register(api, huma.Operation{
		OperationID: "submit-request",
		Method:      http.MethodPost,
		Path:        "/api/v1/requests",
		Summary:     "Submit a provisioning request",
		Tags:        []string{"Requests"},
	}, func(ctx context.Context, input *SubmitRequestInput) (*SubmitRequestOutput, error) {
		req, err := svc.Submit(ctx, input.Body)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &SubmitRequestOutput{Body: toRequestResponse(req)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-request",
		Method:      http.MethodGet,
		Path:        "/api/v1/requests/{id}",
		Summary:     "Get a request by ID",
		Tags:        []string{"Requests"},
	}, func(ctx context.Context, input *GetRequestInput) (*GetRequestOutput, error) {
		req, err := svc.GetByID(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetRequestOutput{Body: toRequestResponse(req)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-requests",
		Method:      http.MethodGet,
		Path:        "/api/v1/requests",
		Summary:     "List requests, newest first",
		Tags:        []string{"Requests"},
	}, func(ctx context.Context, input *ListRequestsInput) (*ListRequestsOutput, error) {
		filter := domain.ListFilter{
			Environment: input.Environment,
			Limit:       input.Limit,
			Offset:      input.Offset,
		}
		if input.Status != "" {
			s := domain.Status(input.Status)
			filter.Status = &s
		}

		requests, err := svc.List(ctx, filter)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]RequestSummary, len(requests))
		for i, r := range requests {
			resp[i] = toRequestSummary(r)
		}
		return &ListRequestsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cleanup-request",
		Method:      http.MethodPost,
		Path:        "/api/v1/requests/{id}/cleanup",
		Summary:     "Delete the courses a request created",
		Tags:        []string{"Requests"},
	}, func(ctx context.Context, input *CleanupRequestInput) (*CleanupRequestOutput, error) {
		result, err := svc.Cleanup(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CleanupRequestOutput{Body: CleanupResponse{
			RequestID:      input.ID,
			DeletedCourses: result.DeletedCourses,
			Skipped:        result.Skipped,
			Errors:         result.Errors,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-environments",
		Method:      http.MethodGet,
		Path:        "/api/v1/environments",
		Summary:     "List configured environments",
		Tags:        []string{"Environments"},
	}, func(ctx context.Context, _ *struct{}) (*ListEnvironmentsOutput, error) {
		out := &ListEnvironmentsOutput{}
		out.Body.Environments = svc.Environments()
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "environment-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/environments/{environment}/status",
		Summary:     "Live snapshot of what exists in an environment",
		Tags:        []string{"Environments"},
	}, func(ctx context.Context, input *EnvironmentStatusInput) (*EnvironmentStatusOutput, error) {
		status, err := svc.EnvironmentStatus(ctx, input.Environment)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &EnvironmentStatusOutput{Body: status}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/api/v1/health",
		Summary:     "Health check",
		Tags:        []string{"System"},
	}, func(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
		out := &HealthOutput{}
		out.Body.Status = "ok"
		return out, nil
	})
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	if errors.Is(err, domain.ErrRequestNotFound) {
		return huma.Error404NotFound("request not found")
	}

	var cleanedErr *domain.AlreadyCleanedError
	if errors.As(err, &cleanedErr) {
		return huma.Error409Conflict(cleanedErr.Error())
	}

	var valErr *domain.ValidationError
	if errors.As(err, &valErr) {
		return huma.Error422UnprocessableEntity(valErr.Error())
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error())
	}

	var provErr *domain.ProviderError
	if errors.As(err, &provErr) {
		return huma.Error502BadGateway(provErr.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
