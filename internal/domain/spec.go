package domain

// SubaccountSpec describes one sub-account to create. ParentAccountID zero
// means "under the configured root account". Extra carries provider-specific
// fields passed through verbatim.
type SubaccountSpec struct {
	Name            string            `json:"name"`
	ParentAccountID int64             `json:"parent_account_id,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// CourseSpec describes one course plus the test population to create in it.
type CourseSpec struct {
	Name       string            `json:"name"`
	CourseCode string            `json:"course_code,omitempty"`
	Sections   int               `json:"sections,omitempty"`
	Students   int               `json:"students"`
	Teachers   int               `json:"teachers"`
	AccountID  int64             `json:"account_id,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// SpecOptions are request-level toggles. Only ConfigureTerms drives
// provisioning; the rest is recorded for the operator handling the request.
type SpecOptions struct {
	ConfigureTerms      bool     `json:"configure_terms,omitempty"`
	Apps                []string `json:"apps,omitempty"`
	DeveloperKeys       bool     `json:"developer_keys,omitempty"`
	IntegrationAccounts bool     `json:"integration_accounts,omitempty"`
}

// RequestSpec is the caller-supplied description of a test environment.
type RequestSpec struct {
	Scenario    string           `json:"scenario"`
	Requester   string           `json:"requester"`
	Environment string           `json:"environment"`
	StartDate   string           `json:"start_date,omitempty"`
	EndDate     string           `json:"end_date,omitempty"`
	AdminUsers  []string         `json:"admin_users,omitempty"`
	Subaccounts []SubaccountSpec `json:"subaccounts,omitempty"`
	Courses     []CourseSpec     `json:"courses,omitempty"`
	Options     SpecOptions      `json:"options,omitempty"`
	Notes       string           `json:"notes,omitempty"`
}

// Validate checks the spec before any remote call is made, so a rejected
// submission has no partial side effects.
func (s RequestSpec) Validate() error {
	if s.Scenario == "" {
		return &ValidationError{Field: "scenario", Reason: "a scenario tag is required"}
	}
	if s.Requester == "" {
		return &ValidationError{Field: "requester", Reason: "requester is required"}
	}
	if s.Environment == "" {
		return &ValidationError{Field: "environment", Reason: "environment is required"}
	}

	for _, sub := range s.Subaccounts {
		if sub.Name == "" {
			return &ValidationError{Field: "subaccounts", Reason: "sub-account name is required"}
		}
		if err := validateExtra("subaccounts", sub.Extra); err != nil {
			return err
		}
	}

	for _, c := range s.Courses {
		if c.Name == "" {
			return &ValidationError{Field: "courses", Reason: "course name is required"}
		}
		if c.Students < 0 || c.Teachers < 0 {
			return &ValidationError{Field: "courses", Reason: "student and teacher counts must not be negative"}
		}
		if err := validateExtra("courses", c.Extra); err != nil {
			return err
		}
	}

	return nil
}

// validateExtra rejects extra provider fields that would clobber fields the
// tracker depends on.
func validateExtra(field string, extra map[string]string) error {
	for key := range extra {
		switch key {
		case "id", "ID", "Id":
			return &ValidationError{Field: field, Reason: "extra field must not overwrite the provider id"}
		}
	}
	return nil
}
