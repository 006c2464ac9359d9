package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStateNames(t *testing.T) {
	// Every state must have a distinct name; log lines are filtered on it.
	seen := map[string]bool{}
	for st := stateInit; st <= stateDone; st++ {
		name := st.String()
		assert.NotEqual(t, "unknown", name)
		assert.False(t, seen[name], "duplicate state name %q", name)
		seen[name] = true
	}
}

func TestDefaultSelectors_KnownMarkupFirst(t *testing.T) {
	sel := DefaultSelectors()

	// The markup observed on real deployments is tried before the generic
	// fallbacks.
	assert.Equal(t, "#Input_Email", sel.Email[0])
	assert.Equal(t, "#Input_Password", sel.Password[0])
	assert.Equal(t, "#loginButton", sel.InitialLogin[0])
	assert.Equal(t, `button[type="submit"].btn.btn-primary`, sel.Submit[0])
}

func TestElementTimeoutError_Message(t *testing.T) {
	err := &ElementTimeoutError{Field: "email input", Timeout: 15 * time.Second}
	assert.Contains(t, err.Error(), "email input")
	assert.Contains(t, err.Error(), "15s")
}

func TestNavigationTimeoutError_Message(t *testing.T) {
	err := &NavigationTimeoutError{Stage: "identity provider redirect", Timeout: 30 * time.Second}
	assert.Contains(t, err.Error(), "identity provider redirect")
	assert.Contains(t, err.Error(), "30s")
}
