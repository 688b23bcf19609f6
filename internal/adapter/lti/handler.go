package lti

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// IMS claim URLs and role vocabulary used in launch tokens.
const (
	claimCustom       = "https://purl.imsglobal.org/spec/lti/claim/custom"
	claimRoles        = "https://purl.imsglobal.org/spec/lti/claim/roles"
	claimDeploymentID = "https://purl.imsglobal.org/spec/lti/claim/deployment_id"

	roleInstructor = "http://purl.imsglobal.org/vocab/lis/v2/membership#Instructor"
)

const (
	stateCookie = "lti_state"
	nonceCookie = "lti_nonce"
)

// Config identifies the tool's registration at one platform.
type Config struct {
	// ClientID is the developer key the platform issued for this tool.
	ClientID string
	// DeploymentID ties launches to one installation of the tool.
	DeploymentID string
	// PlatformIssuer is the iss value the platform puts in its tokens.
	PlatformIssuer string
	// AuthLoginURL is the platform's OIDC authorization endpoint.
	AuthLoginURL string
	// KeySetURL is the platform's public JWKS endpoint.
	KeySetURL string
	// BaseURL is where this tool is reachable from the platform.
	BaseURL string
}

// Handler implements the LTI 1.3 tool surface: configuration and JWKS
// endpoints for registration, plus the OIDC login initiation and launch
// endpoints the platform calls on every tool launch.
type Handler struct {
	cfg  Config
	keys *KeyPair
}

// NewHandler creates an LTI handler for the given registration and tool keys.
func NewHandler(cfg Config, keys *KeyPair) *Handler {
	return &Handler{cfg: cfg, keys: keys}
}

// Routes mounts the LTI endpoints on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/lti/jwks", h.jwks)
	r.Get("/lti/config", h.config)
	r.Get("/lti/login", h.login)
	r.Post("/lti/login", h.login)
	r.Post("/lti/launch", h.launch)
}

// jwks serves the tool's public keys for the platform to verify signatures.
func (h *Handler) jwks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.keys.PublicSet())
}

// config serves the tool configuration JSON for platform registration.
func (h *Handler) config(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newToolConfig(h.cfg.BaseURL))
}

// login handles OIDC third-party login initiation. The platform sends the
// issuer and a login hint; the tool answers with a redirect back to the
// platform's authorization endpoint carrying fresh state and nonce values.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed login request")
		return
	}

	iss := r.Form.Get("iss")
	if iss != h.cfg.PlatformIssuer {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown issuer %q", iss))
		return
	}

	loginHint := r.Form.Get("login_hint")
	if loginHint == "" {
		writeError(w, http.StatusBadRequest, "login_hint is required")
		return
	}

	state, err := randomToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "generating state")
		return
	}
	nonce, err := randomToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "generating nonce")
		return
	}

	setCallbackCookie(w, stateCookie, state)
	setCallbackCookie(w, nonceCookie, nonce)

	q := url.Values{}
	q.Set("scope", "openid")
	q.Set("response_type", "id_token")
	q.Set("response_mode", "form_post")
	q.Set("prompt", "none")
	q.Set("client_id", h.cfg.ClientID)
	q.Set("redirect_uri", h.cfg.BaseURL+"/lti/launch")
	q.Set("state", state)
	q.Set("nonce", nonce)
	q.Set("login_hint", loginHint)
	if hint := r.Form.Get("lti_message_hint"); hint != "" {
		q.Set("lti_message_hint", hint)
	}

	http.Redirect(w, r, h.cfg.AuthLoginURL+"?"+q.Encode(), http.StatusFound)
}

// LaunchResult is what the tool knows about the user after a validated launch.
type LaunchResult struct {
	UserName        string `json:"user_name"`
	UserEmail       string `json:"user_email"`
	CanvasUserID    string `json:"canvas_user_id"`
	CanvasAccountID string `json:"canvas_account_id"`
	IsInstructor    bool   `json:"is_instructor"`
}

// launch validates the platform's id_token and reports the launching user.
func (h *Handler) launch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed launch request")
		return
	}

	state, err := r.Cookie(stateCookie)
	if err != nil || r.Form.Get("state") != state.Value {
		writeError(w, http.StatusBadRequest, "state mismatch")
		return
	}

	rawToken := r.Form.Get("id_token")
	if rawToken == "" {
		writeError(w, http.StatusBadRequest, "id_token is required")
		return
	}

	keySet, err := jwk.Fetch(r.Context(), h.cfg.KeySetURL)
	if err != nil {
		slog.ErrorContext(r.Context(), "fetching platform keyset", "url", h.cfg.KeySetURL, "error", err)
		writeError(w, http.StatusBadGateway, "platform keyset unavailable")
		return
	}

	token, err := jwt.Parse([]byte(rawToken),
		jwt.WithKeySet(keySet),
		jwt.WithIssuer(h.cfg.PlatformIssuer),
		jwt.WithAudience(h.cfg.ClientID),
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid id_token: %v", err))
		return
	}

	if nonce, err := r.Cookie(nonceCookie); err != nil || claimString(token, "nonce") != nonce.Value {
		writeError(w, http.StatusBadRequest, "nonce mismatch")
		return
	}

	if got := claimString(token, claimDeploymentID); got != h.cfg.DeploymentID {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown deployment %q", got))
		return
	}

	custom := claimMap(token, claimCustom)
	result := LaunchResult{
		UserName:        claimString(token, "name"),
		UserEmail:       claimString(token, "email"),
		CanvasUserID:    custom["canvas_user_id"],
		CanvasAccountID: custom["canvas_account_id"],
		IsInstructor:    hasRole(token, roleInstructor),
	}

	slog.InfoContext(r.Context(), "lti launch validated",
		"user", result.UserName,
		"canvas_user_id", result.CanvasUserID,
		"is_instructor", result.IsInstructor,
	)

	writeJSON(w, http.StatusOK, result)
}

func claimString(token jwt.Token, name string) string {
	v, ok := token.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func claimMap(token jwt.Token, name string) map[string]string {
	out := make(map[string]string)
	v, ok := token.Get(name)
	if !ok {
		return out
	}
	m, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for key, value := range m {
		if s, ok := value.(string); ok {
			out[key] = s
		}
	}
	return out
}

func hasRole(token jwt.Token, role string) bool {
	v, ok := token.Get(claimRoles)
	if !ok {
		return false
	}
	roles, ok := v.([]any)
	if !ok {
		return false
	}
	for _, r := range roles {
		if s, ok := r.(string); ok && s == role {
			return true
		}
	}
	return false
}

func randomToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// setCallbackCookie stores a short-lived value for the form_post callback.
// SameSite=None because the launch POST comes from the platform's origin.
func setCallbackCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/lti",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
