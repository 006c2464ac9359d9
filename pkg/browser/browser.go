package browser

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"

	"github.com/tokenrelay/tokenrelay/pkg/config"
)

// LaunchError means no usable browser could be started or reached.
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch browser: %s (install Chrome or Chromium, or set BROWSER_EXECUTABLE_PATH / BROWSER_CHROME_URL)", e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Manager hands out browsers for login sessions. Each call to Acquire
// yields a browser exclusively owned by one request; the returned release
// function must run on every exit path.
type Manager struct {
	cfg *config.ServerConfig
}

func New(cfg *config.ServerConfig) *Manager {
	return &Manager{cfg: cfg}
}

// Acquire starts (or connects to) a browser for one session. In launcher
// mode the release function kills the Chrome process it started. In remote
// mode the session runs in a private incognito context on the shared Chrome
// and release disposes that context.
func (m *Manager) Acquire(ctx context.Context) (*rod.Browser, func(), error) {
	if m.cfg.Browser.ChromeURL != "" {
		return m.connect(ctx)
	}
	return m.launch(ctx)
}

func (m *Manager) launch(ctx context.Context) (*rod.Browser, func(), error) {
	l := launcher.New().
		Headless(m.cfg.Browser.Headless).
		NoSandbox(true).
		Set("disable-setuid-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("window-size", fmt.Sprintf("%d,%d", m.cfg.Browser.ViewportWidth, m.cfg.Browser.ViewportHeight)).
		Set("disable-application-cache").
		Set("disk-cache-size", "0").
		Set("disable-extensions")

	if m.cfg.Browser.ExecutablePath != "" {
		l = l.Bin(m.cfg.Browser.ExecutablePath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, nil, &LaunchError{Err: err}
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, nil, &LaunchError{Err: err}
	}

	release := func() {
		if err := browser.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing browser")
		}
		l.Cleanup()
	}
	return browser, release, nil
}

func (m *Manager) connect(ctx context.Context) (*rod.Browser, func(), error) {
	controlURL, err := m.resolveChromeURL()
	if err != nil {
		return nil, nil, &LaunchError{Err: err}
	}

	log.Info().Str("chrome_url", controlURL).Msg("connecting to browser")
	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, nil, &LaunchError{Err: err}
	}

	// The remote Chrome is shared across requests, so each session gets its
	// own incognito browser context. Cookie and storage state live inside the
	// context, and disposing it cannot touch concurrent sessions.
	incognito, err := browser.Incognito()
	if err != nil {
		return nil, nil, &LaunchError{Err: err}
	}

	release := func() {
		if err := incognito.Close(); err != nil {
			log.Warn().Err(err).Msg("error disposing browser context")
		}
	}
	return incognito, release, nil
}

// resolveChromeURL turns the configured Chrome URL into a websocket control
// URL. The hostname is resolved to an IP first because Chrome rejects
// devtools connections addressed by hostname.
func (m *Manager) resolveChromeURL() (string, error) {
	chromeURL := m.cfg.Browser.ChromeURL

	parsedURL, err := url.Parse(chromeURL)
	if err != nil {
		return "", fmt.Errorf("error parsing Chrome URL (%s): %w", chromeURL, err)
	}

	hostname := parsedURL.Hostname()
	resolvedURL := chromeURL
	if hostname != "localhost" && hostname != "127.0.0.1" {
		ips, err := net.LookupIP(hostname)
		if err != nil {
			return "", fmt.Errorf("error resolving Chrome URL (%s) to IP: %w", chromeURL, err)
		}
		if len(ips) == 0 {
			return "", fmt.Errorf("no IP addresses found for Chrome URL (%s)", chromeURL)
		}
		resolvedURL = strings.Replace(chromeURL, hostname, ips[0].String(), 1)
	}

	if err := probeChrome(resolvedURL, hostname); err != nil {
		return "", err
	}

	u, err := launcher.ResolveURL(resolvedURL)
	if err != nil {
		return "", fmt.Errorf("error resolving Chrome URL (%s): %w", resolvedURL, err)
	}
	return u, nil
}

// probeChrome checks the devtools endpoint is actually answering before we
// hand the URL to rod, retrying while Chrome is still coming up.
func probeChrome(resolvedURL, hostname string) error {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = stdlog.New(io.Discard, "", stdlog.LstdFlags)

	req, err := retryablehttp.NewRequest(http.MethodGet, resolvedURL+"/json/version", nil)
	if err != nil {
		return fmt.Errorf("error creating request for Chrome URL (%s): %w", resolvedURL, err)
	}
	// net/http ignores a Host header set via Header; it has to go on the
	// request itself.
	req.Host = hostname

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error checking Chrome URL (%s): %w", resolvedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bts, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("error reading Chrome URL (%s) response: %w", resolvedURL, err)
		}
		return fmt.Errorf("error checking Chrome URL (%s): %d %s", resolvedURL, resp.StatusCode, string(bts))
	}
	return nil
}
