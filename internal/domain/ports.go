package domain

import "context"

// RequestRepository defines the persistence contract for provisioning requests.
type RequestRepository interface {
	Create(ctx context.Context, req Request) error
	GetByID(ctx context.Context, id string) (Request, error)
	List(ctx context.Context, filter ListFilter) ([]Request, error)
	Update(ctx context.Context, req Request) error
}

// ListFilter holds optional criteria for listing requests.
type ListFilter struct {
	Status      *Status
	Environment string
	Limit       int
	Offset      int
}

// Provisioner defines the provider operations the lifecycle tracker needs.
// Implementations do not retry: classification of failures is the caller's
// job. Each create mutates remote state; only courses can be deleted again.
type Provisioner interface {
	CreateSubaccount(ctx context.Context, parentID int64, name string, extra map[string]string) (Subaccount, error)
	CreateCourse(ctx context.Context, accountID int64, name, code string, extra map[string]string) (Course, error)
	CreateUser(ctx context.Context, accountID int64, name, email, loginID string, extra map[string]string) (User, error)
	EnrollUser(ctx context.Context, courseID, userID int64, role string) (Enrollment, error)
	CreateTerm(ctx context.Context, accountID int64, name, startAt, endAt string) (Term, error)
	DeleteCourse(ctx context.Context, courseID int64) error
	ListSubaccounts(ctx context.Context, accountID int64) ([]Subaccount, error)
	ListCourses(ctx context.Context, accountID int64) ([]Course, error)
}

// EventPublisher defines the contract for emitting lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event Event, req Request) error
}

// TransitionValidator checks whether an event is allowed from a state and
// returns the resulting state.
type TransitionValidator interface {
	Apply(ctx context.Context, current Status, event Event) (Status, error)
}
