package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/campusops/testbench/internal/domain"
)

// TracingProvisioner wraps a domain.Provisioner with OpenTelemetry tracing.
// Every remote provider call gets a span, so a slow or failing environment
// shows up per operation in the trace.
type TracingProvisioner struct {
	next        domain.Provisioner
	environment string
	tracer      trace.Tracer
}

// Compile-time check: TracingProvisioner implements domain.Provisioner.
var _ domain.Provisioner = (*TracingProvisioner)(nil)

// NewTracingProvisioner creates a tracing decorator around the given
// provisioner. The environment name is attached to every span.
func NewTracingProvisioner(next domain.Provisioner, environment string) *TracingProvisioner {
	return &TracingProvisioner{
		next:        next,
		environment: environment,
		tracer:      otel.Tracer(tracerName),
	}
}

func (p *TracingProvisioner) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("provider.environment", p.environment))
	return p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (p *TracingProvisioner) CreateSubaccount(ctx context.Context, parentID int64, name string, extra map[string]string) (domain.Subaccount, error) {
	ctx, span := p.start(ctx, "Provisioner.CreateSubaccount",
		attribute.Int64("account.parent_id", parentID),
	)
	sub, err := p.next.CreateSubaccount(ctx, parentID, name, extra)
	finish(span, err)
	return sub, err
}

func (p *TracingProvisioner) CreateCourse(ctx context.Context, accountID int64, name, code string, extra map[string]string) (domain.Course, error) {
	ctx, span := p.start(ctx, "Provisioner.CreateCourse",
		attribute.Int64("account.id", accountID),
	)
	course, err := p.next.CreateCourse(ctx, accountID, name, code, extra)
	finish(span, err)
	return course, err
}

func (p *TracingProvisioner) CreateUser(ctx context.Context, accountID int64, name, email, loginID string, extra map[string]string) (domain.User, error) {
	ctx, span := p.start(ctx, "Provisioner.CreateUser",
		attribute.Int64("account.id", accountID),
		attribute.String("user.login_id", loginID),
	)
	user, err := p.next.CreateUser(ctx, accountID, name, email, loginID, extra)
	finish(span, err)
	return user, err
}

func (p *TracingProvisioner) EnrollUser(ctx context.Context, courseID, userID int64, role string) (domain.Enrollment, error) {
	ctx, span := p.start(ctx, "Provisioner.EnrollUser",
		attribute.Int64("course.id", courseID),
		attribute.Int64("user.id", userID),
		attribute.String("enrollment.role", role),
	)
	enrollment, err := p.next.EnrollUser(ctx, courseID, userID, role)
	finish(span, err)
	return enrollment, err
}

func (p *TracingProvisioner) CreateTerm(ctx context.Context, accountID int64, name, startAt, endAt string) (domain.Term, error) {
	ctx, span := p.start(ctx, "Provisioner.CreateTerm",
		attribute.Int64("account.id", accountID),
	)
	term, err := p.next.CreateTerm(ctx, accountID, name, startAt, endAt)
	finish(span, err)
	return term, err
}

func (p *TracingProvisioner) DeleteCourse(ctx context.Context, courseID int64) error {
	ctx, span := p.start(ctx, "Provisioner.DeleteCourse",
		attribute.Int64("course.id", courseID),
	)
	err := p.next.DeleteCourse(ctx, courseID)
	finish(span, err)
	return err
}

func (p *TracingProvisioner) ListSubaccounts(ctx context.Context, accountID int64) ([]domain.Subaccount, error) {
	ctx, span := p.start(ctx, "Provisioner.ListSubaccounts",
		attribute.Int64("account.id", accountID),
	)
	subs, err := p.next.ListSubaccounts(ctx, accountID)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(subs)))
	}
	finish(span, err)
	return subs, err
}

func (p *TracingProvisioner) ListCourses(ctx context.Context, accountID int64) ([]domain.Course, error) {
	ctx, span := p.start(ctx, "Provisioner.ListCourses",
		attribute.Int64("account.id", accountID),
	)
	courses, err := p.next.ListCourses(ctx, accountID)
	if err == nil {
		span.SetAttributes(attribute.Int("result.count", len(courses)))
	}
	finish(span, err)
	return courses, err
}
