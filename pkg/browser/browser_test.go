package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenrelay/tokenrelay/pkg/config"
)

func TestManager_AcquireRemote(t *testing.T) {
	// Needs a running Chrome devtools endpoint, e.g. a browserless
	// container. Skipped unless one is configured.
	if os.Getenv("BROWSER_CHROME_URL") == "" {
		t.Skip("BROWSER_CHROME_URL not set, skipping browser test")
	}

	cfg, err := config.LoadServerConfig()
	require.NoError(t, err)

	m := New(&cfg)
	browser, release, err := m.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	require.NotNil(t, browser)
	// Remote sessions must be isolated in their own incognito context so one
	// session's cookie cleanup cannot log out a concurrent one.
	assert.NotEmpty(t, browser.BrowserContextID)

	other, otherRelease, err := m.Acquire(context.Background())
	require.NoError(t, err)
	defer otherRelease()
	assert.NotEqual(t, browser.BrowserContextID, other.BrowserContextID)
}

func TestProbeChrome_SendsOriginalHostname(t *testing.T) {
	var gotHost, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.Host
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// The URL is the resolved IP form; the original hostname still has to
	// reach the devtools endpoint as the Host header.
	require.NoError(t, probeChrome(srv.URL, "chrome.internal"))
	assert.Equal(t, "chrome.internal", gotHost)
	assert.Equal(t, "/json/version", gotPath)
}

func TestResolveChromeURL_InvalidHost(t *testing.T) {
	cfg, err := config.LoadServerConfig()
	require.NoError(t, err)
	cfg.Browser.ChromeURL = "http://chrome.invalid.:9222"

	m := New(&cfg)
	_, err = m.resolveChromeURL()
	assert.Error(t, err)
}

func TestLaunchError_Message(t *testing.T) {
	err := &LaunchError{Err: os.ErrNotExist}
	assert.Contains(t, err.Error(), "BROWSER_EXECUTABLE_PATH")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
