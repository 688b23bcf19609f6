package domain

import "time"

// Status represents the lifecycle state of a provisioning request.
type Status string

const (
	StatusSubmitted    Status = "submitted"
	StatusProvisioning Status = "provisioning"
	StatusCompleted    Status = "completed"
	StatusCleaned      Status = "cleaned"
)

// Event represents an action that triggers a state transition.
type Event string

const (
	EventStartProvisioning Event = "start_provisioning"
	EventProvisionComplete Event = "provision_complete"
	EventCleanup           Event = "cleanup"
)

// Transition defines a valid state change: an event moves a request from Src to Dst.
type Transition struct {
	Event Event
	Src   Status
	Dst   Status
}

// Transitions defines all valid state changes in the request lifecycle.
// This is domain knowledge consumed by the FSM adapter.
var Transitions = []Transition{
	{Event: EventStartProvisioning, Src: StatusSubmitted, Dst: StatusProvisioning},
	{Event: EventProvisionComplete, Src: StatusProvisioning, Dst: StatusCompleted},
	{Event: EventCleanup, Src: StatusCompleted, Dst: StatusCleaned},
}

// Enrollment roles understood by the provider.
const (
	RoleStudent = "StudentEnrollment"
	RoleTeacher = "TeacherEnrollment"
)

// Subaccount is a provider organizational unit created under a parent account.
type Subaccount struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	ParentAccountID int64  `json:"parent_account_id"`
	WorkflowState   string `json:"workflow_state"`
}

// Course is a provider course record.
type Course struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	CourseCode    string `json:"course_code"`
	AccountID     int64  `json:"account_id"`
	WorkflowState string `json:"workflow_state"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// User is a provider user record.
type User struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	LoginID string `json:"login_id"`
}

// Enrollment associates a user with a course under a role.
type Enrollment struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"user_id"`
	CourseID int64  `json:"course_id"`
	Role     string `json:"role"`
	State    string `json:"enrollment_state"`
}

// Term is a provider enrollment term.
type Term struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	StartAt string `json:"start_at"`
	EndAt   string `json:"end_at"`
}

// CreatedResources records everything a request created at the provider,
// in creation order. Errors accumulates per-resource failures independently
// of successes: a failed student must not abort the rest of the batch.
type CreatedResources struct {
	Subaccounts []Subaccount `json:"subaccounts"`
	Courses     []Course     `json:"courses"`
	Users       []User       `json:"users"`
	Enrollments []Enrollment `json:"enrollments"`
	Terms       []Term       `json:"terms,omitempty"`
	Errors      []string     `json:"errors"`
}

// CleanupResult summarizes the deletions performed during cleanup.
// Skipped lists resources the provider cannot delete (users, sub-accounts).
type CleanupResult struct {
	DeletedCourses []int64  `json:"deleted_courses"`
	Skipped        []string `json:"skipped"`
	Errors         []string `json:"errors"`
}

// Request is the core domain entity: one provisioning request, the resources
// it created, and whether they were cleaned up. The persisted record is the
// only durable trace of what exists at the provider.
type Request struct {
	ID               string
	Scenario         string
	Requester        string
	Environment      string
	StartDate        string
	EndDate          string
	Notes            string
	Status           Status
	CreatedAt        time.Time
	CreatedResources CreatedResources
	Cleaned          bool
	CleanedAt        *time.Time
	CleanupResults   *CleanupResult
}

// NewRequest creates a request in the initial "submitted" state from a spec.
func NewRequest(id string, spec RequestSpec) Request {
	return Request{
		ID:          id,
		Scenario:    spec.Scenario,
		Requester:   spec.Requester,
		Environment: spec.Environment,
		StartDate:   spec.StartDate,
		EndDate:     spec.EndDate,
		Notes:       spec.Notes,
		Status:      StatusSubmitted,
		CreatedAt:   time.Now().UTC(),
	}
}

// MarkCleaned records a completed cleanup. The cleaned flag is monotonic:
// callers must check it before re-running cleanup.
func (r *Request) MarkCleaned(result CleanupResult) {
	now := time.Now().UTC()
	r.Cleaned = true
	r.CleanedAt = &now
	r.CleanupResults = &result
}

// EnvironmentStatus is a live snapshot of one environment, read from the
// provider rather than the request store.
type EnvironmentStatus struct {
	Environment  string  `json:"environment"`
	Subaccounts  int     `json:"subaccounts"`
	Courses      int     `json:"courses"`
	LastActivity *string `json:"lastActivity"`
	Status       string  `json:"status"`
}

// Environment status labels.
const (
	EnvStatusClean = "clean"
	EnvStatusInUse = "in-use"
)
