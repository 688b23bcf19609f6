package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/campusops/testbench/internal/domain"
)

// provision runs the resource-creation loop for one request. Creation order
// is sub-accounts, then the optional term, then courses, then per-course
// users and enrollments; later steps depend on earlier ones for account
// nesting. Every provider failure is recorded and the loop moves on:
// partial completion is the expected common case.
func (s *RequestService) provision(ctx context.Context, prov domain.Provisioner, req *domain.Request, spec domain.RequestSpec) {
	res := &req.CreatedResources

	for _, sub := range spec.Subaccounts {
		parent := sub.ParentAccountID
		if parent == 0 {
			parent = s.rootAccountID
		}
		created, err := prov.CreateSubaccount(ctx, parent, sub.Name, sub.Extra)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("failed to create subaccount %q: %v", sub.Name, err))
			continue
		}
		res.Subaccounts = append(res.Subaccounts, created)
	}

	// Courses nest under the first created sub-account. When none was
	// requested or its creation failed, fall back to the root account so
	// the rest of the request still completes.
	courseAccount := s.rootAccountID
	if len(res.Subaccounts) > 0 {
		courseAccount = res.Subaccounts[0].ID
	}

	if spec.Options.ConfigureTerms && spec.StartDate != "" && spec.EndDate != "" {
		term, err := prov.CreateTerm(ctx, courseAccount, "Test term "+req.ID, spec.StartDate, spec.EndDate)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("failed to create term: %v", err))
		} else {
			res.Terms = append(res.Terms, term)
		}
	}

	for i, cs := range spec.Courses {
		account := cs.AccountID
		if account == 0 {
			account = courseAccount
		}

		code := cs.CourseCode
		if code == "" {
			code = fmt.Sprintf("TST-%s-%d", strings.TrimPrefix(req.ID, "REQ-"), i+1)
		}

		course, err := prov.CreateCourse(ctx, account, cs.Name, code, cs.Extra)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("failed to create course %q: %v", cs.Name, err))
			continue
		}
		res.Courses = append(res.Courses, course)

		s.populateCourse(ctx, prov, req, course, account, i+1, cs.Students, cs.Teachers)
	}
}

// populateCourse creates the requested test users for one course and
// enrolls each under the matching role, students first.
func (s *RequestService) populateCourse(ctx context.Context, prov domain.Provisioner, req *domain.Request, course domain.Course, accountID int64, courseNum, students, teachers int) {
	for n := 1; n <= students; n++ {
		s.createAndEnroll(ctx, prov, req, course,
			accountID,
			fmt.Sprintf("Test Student %d-%d", courseNum, n),
			fmt.Sprintf("%s-c%d-student%d", strings.ToLower(req.ID), courseNum, n),
			domain.RoleStudent,
		)
	}
	for n := 1; n <= teachers; n++ {
		s.createAndEnroll(ctx, prov, req, course,
			accountID,
			fmt.Sprintf("Test Teacher %d-%d", courseNum, n),
			fmt.Sprintf("%s-c%d-teacher%d", strings.ToLower(req.ID), courseNum, n),
			domain.RoleTeacher,
		)
	}
}

func (s *RequestService) createAndEnroll(ctx context.Context, prov domain.Provisioner, req *domain.Request, course domain.Course, accountID int64, name, loginID, role string) {
	res := &req.CreatedResources

	user, err := prov.CreateUser(ctx, accountID, name, loginID+"@example.edu", loginID, nil)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("failed to create user %q: %v", loginID, err))
		return
	}
	res.Users = append(res.Users, user)

	enrollment, err := prov.EnrollUser(ctx, course.ID, user.ID, role)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("failed to enroll user %q in course %d: %v", loginID, course.ID, err))
		return
	}
	res.Enrollments = append(res.Enrollments, enrollment)
}
