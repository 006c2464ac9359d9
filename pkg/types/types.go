package types

import "time"

// TokenSource says where a captured token was observed.
type TokenSource string

const (
	TokenSourceNetwork        TokenSource = "NETWORK"
	TokenSourceLocalStorage   TokenSource = "LOCAL_STORAGE"
	TokenSourceSessionStorage TokenSource = "SESSION_STORAGE"
)

// LoginRequest is the body of POST /get-token.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	URL      string `json:"url"`
}

// Valid reports whether all required fields are present.
func (r *LoginRequest) Valid() bool {
	return r != nil && r.Username != "" && r.Password != "" && r.URL != ""
}

// CapturedToken is the bearer token observed during a login session,
// together with the strategy that found it.
type CapturedToken struct {
	Value  string      `json:"value"`
	Source TokenSource `json:"source"`
}

// LoginResult is the outcome of one login flow run.
type LoginResult struct {
	Token      *CapturedToken `json:"token,omitempty"`
	CapturedAt time.Time      `json:"capturedAt"`
	Duration   time.Duration  `json:"duration"`
}

// TokenLifetime is how long we advertise a captured token as valid for.
// The upstream identity provider issues roughly hour-long tokens; we
// report 55 minutes so callers refresh before the real expiry.
const TokenLifetime = 55 * time.Minute

// TokenResponse is the success body of POST /get-token.
type TokenResponse struct {
	Success             bool   `json:"success"`
	Token               string `json:"token"`
	AuthorizationHeader string `json:"authorizationHeader"`
	ExpiresAt           string `json:"expiresAt"`
	CapturedAt          string `json:"capturedAt"`
	ExecutionTime       string `json:"executionTime,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// HealthResponse is the body of GET /.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}
