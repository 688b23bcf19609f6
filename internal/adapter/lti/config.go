package lti

// ToolConfig is the LTI 1.3 tool configuration JSON the platform imports
// when the tool is registered. The shape follows Canvas's dynamic
// configuration format.
type ToolConfig struct {
	Title             string            `json:"title"`
	Description       string            `json:"description"`
	OIDCInitiationURL string            `json:"oidc_initiation_url"`
	TargetLinkURI     string            `json:"target_link_uri"`
	Scopes            []string          `json:"scopes"`
	Extensions        []ToolExtension   `json:"extensions"`
	PublicJWKURL      string            `json:"public_jwk_url"`
	CustomFields      map[string]string `json:"custom_fields"`
}

// ToolExtension holds platform-specific settings.
type ToolExtension struct {
	Platform     string            `json:"platform"`
	Settings     ExtensionSettings `json:"settings"`
	PrivacyLevel string            `json:"privacy_level"`
}

// ExtensionSettings configures where the tool appears in the platform UI.
type ExtensionSettings struct {
	Platform   string      `json:"platform"`
	Placements []Placement `json:"placements"`
}

// Placement is a single UI location for the tool.
type Placement struct {
	Placement     string `json:"placement"`
	MessageType   string `json:"message_type"`
	Text          string `json:"text"`
	Enabled       bool   `json:"enabled"`
	TargetLinkURI string `json:"target_link_uri"`
	IconClass     string `json:"canvas_icon_class"`
}

// newToolConfig builds the configuration for a tool served at baseURL.
func newToolConfig(baseURL string) ToolConfig {
	launchURL := baseURL + "/lti/launch"
	return ToolConfig{
		Title:             "Canvas Test Automation Tool",
		Description:       "Automated test environment setup for Canvas",
		OIDCInitiationURL: baseURL + "/lti/login",
		TargetLinkURI:     launchURL,
		Scopes: []string{
			"https://purl.imsglobal.org/spec/lti/scope/lineitem",
			"https://purl.imsglobal.org/spec/lti-ags/scope/lineitem.readonly",
			"https://purl.imsglobal.org/spec/lti-ags/scope/result.readonly",
			"https://purl.imsglobal.org/spec/lti-ags/scope/score",
			"https://canvas.instructure.com/lti/public_jwk/scope/update",
			"https://canvas.instructure.com/lti/account_navigation/scope/show",
			"https://canvas.instructure.com/lti/feature_flags/scope/show",
		},
		Extensions: []ToolExtension{{
			Platform: "canvas.instructure.com",
			Settings: ExtensionSettings{
				Platform: "canvas.instructure.com",
				Placements: []Placement{{
					Placement:     "account_navigation",
					MessageType:   "LtiResourceLinkRequest",
					Text:          "Test Automation",
					Enabled:       true,
					TargetLinkURI: launchURL,
					IconClass:     "icon-lti",
				}},
			},
			PrivacyLevel: "public",
		}},
		PublicJWKURL: baseURL + "/lti/jwks",
		CustomFields: map[string]string{
			"canvas_user_id":      "$Canvas.user.id",
			"canvas_user_name":    "$Person.name.full",
			"canvas_user_email":   "$Person.email.primary",
			"canvas_account_id":   "$Canvas.account.id",
			"canvas_account_name": "$Canvas.account.name",
		},
	}
}
