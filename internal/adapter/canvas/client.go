package canvas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/campusops/testbench/internal/domain"
)

// Compile-time check: Client implements domain.Provisioner.
var _ domain.Provisioner = (*Client)(nil)

// Client talks to the Canvas LMS admin REST API with a bearer token. It
// performs no retries; every failed call surfaces as a domain.ProviderError
// and the caller decides what to do with it.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the given Canvas instance. A trailing /api/v1
// in the base URL is tolerated and stripped.
func New(baseURL, token string) *Client {
	baseURL = strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/api/v1")
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) CreateSubaccount(ctx context.Context, parentID int64, name string, extra map[string]string) (domain.Subaccount, error) {
	payload := map[string]any{"account": merge(map[string]any{"name": name}, extra)}

	var sub domain.Subaccount
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/accounts/%d/sub_accounts", parentID), payload, &sub)
	if err != nil {
		return domain.Subaccount{}, err
	}
	if sub.WorkflowState == "" {
		sub.WorkflowState = "active"
	}
	return sub, nil
}

func (c *Client) CreateCourse(ctx context.Context, accountID int64, name, code string, extra map[string]string) (domain.Course, error) {
	course := map[string]any{
		"name":                    name,
		"course_code":             code,
		"is_public":               false,
		"is_public_to_auth_users": false,
		// Publish immediately so enrollments become active.
		"workflow_state": "available",
	}
	payload := map[string]any{"course": merge(course, extra)}

	var created domain.Course
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/accounts/%d/courses", accountID), payload, &created); err != nil {
		return domain.Course{}, err
	}
	if created.AccountID == 0 {
		created.AccountID = accountID
	}
	return created, nil
}

func (c *Client) CreateUser(ctx context.Context, accountID int64, name, email, loginID string, extra map[string]string) (domain.User, error) {
	parts := strings.Fields(name)
	short := name
	sortable := name
	if len(parts) > 1 {
		short = parts[0]
		sortable = parts[len(parts)-1] + ", " + strings.Join(parts[:len(parts)-1], " ")
	}

	payload := map[string]any{
		"user": merge(map[string]any{
			"name":          name,
			"short_name":    short,
			"sortable_name": sortable,
		}, extra),
		"pseudonym": map[string]any{
			"unique_id":         loginID,
			"send_confirmation": false,
		},
		"communication_channel": map[string]any{
			"address": email,
			"type":    "email",
		},
	}

	var user domain.User
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/accounts/%d/users", accountID), payload, &user); err != nil {
		return domain.User{}, err
	}
	// Canvas echoes neither email nor login id back on creation.
	user.Email = email
	user.LoginID = loginID
	return user, nil
}

func (c *Client) EnrollUser(ctx context.Context, courseID, userID int64, role string) (domain.Enrollment, error) {
	payload := map[string]any{
		"enrollment": map[string]any{
			"user_id":          userID,
			"type":             role,
			"enrollment_state": "active",
		},
	}

	var enr enrollmentResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/courses/%d/enrollments", courseID), payload, &enr); err != nil {
		return domain.Enrollment{}, err
	}
	return enr.toDomain(role), nil
}

func (c *Client) CreateTerm(ctx context.Context, accountID int64, name, startAt, endAt string) (domain.Term, error) {
	payload := map[string]any{
		"enrollment_term": map[string]any{
			"name":     name,
			"start_at": startAt,
			"end_at":   endAt,
		},
	}

	var term domain.Term
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/accounts/%d/terms", accountID), payload, &term); err != nil {
		return domain.Term{}, err
	}
	return term, nil
}

func (c *Client) DeleteCourse(ctx context.Context, courseID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/courses/%d?event=delete", courseID), nil, nil)
}

func (c *Client) ListSubaccounts(ctx context.Context, accountID int64) ([]domain.Subaccount, error) {
	var subs []domain.Subaccount
	path := fmt.Sprintf("/accounts/%d/sub_accounts?recursive=true&per_page=100", accountID)
	if err := c.do(ctx, http.MethodGet, path, nil, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func (c *Client) ListCourses(ctx context.Context, accountID int64) ([]domain.Course, error) {
	var courses []domain.Course
	path := fmt.Sprintf("/accounts/%d/courses?per_page=100&state[]=available&state[]=completed&state[]=unpublished", accountID)
	if err := c.do(ctx, http.MethodGet, path, nil, &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// enrollmentResponse covers the fields Canvas returns for an enrollment.
// The role reported back can be a display name, so the requested role wins
// when Canvas omits it.
type enrollmentResponse struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"user_id"`
	CourseID int64  `json:"course_id"`
	Type     string `json:"type"`
	State    string `json:"enrollment_state"`
}

func (e enrollmentResponse) toDomain(requestedRole string) domain.Enrollment {
	role := e.Type
	if role == "" {
		role = requestedRole
	}
	return domain.Enrollment{
		ID:       e.ID,
		UserID:   e.UserID,
		CourseID: e.CourseID,
		Role:     role,
		State:    e.State,
	}
}

// do executes one API call against /api/v1 and decodes the JSON response
// into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api/v1"+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.ProviderError{StatusCode: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.ProviderError{
			StatusCode: resp.StatusCode,
			Message:    readErrorMessage(resp.Body),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// readErrorMessage extracts a human-readable message from a Canvas error
// body, which is usually {"errors":[{"message":...}]} or {"message":...}.
func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return "no error details"
	}

	var structured struct {
		Message string `json:"message"`
		Errors  []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &structured); err == nil {
		if len(structured.Errors) > 0 && structured.Errors[0].Message != "" {
			return structured.Errors[0].Message
		}
		if structured.Message != "" {
			return structured.Message
		}
	}
	return strings.TrimSpace(string(raw))
}

func merge(base map[string]any, extra map[string]string) map[string]any {
	for k, v := range extra {
		base[k] = v
	}
	return base
}
