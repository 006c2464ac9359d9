package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type ServerConfig struct {
	WebServer WebServer
	Browser   Browser
	Flow      Flow

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" description:"Log level (trace, debug, info, warn, error)."`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false" description:"Whether to use human-readable console log output instead of JSON."`
}

func LoadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	err := envconfig.Process("", &cfg)
	if err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

type WebServer struct {
	Host string `envconfig:"SERVER_HOST" default:"0.0.0.0" description:"The host to bind the server to."`
	Port int    `envconfig:"SERVER_PORT" default:"3000" description:"The port to bind the server to."`
}

type Browser struct {
	// Path to a Chrome/Chromium binary. When empty the launcher downloads
	// or discovers one itself.
	ExecutablePath string `envconfig:"BROWSER_EXECUTABLE_PATH" description:"Path to the Chrome executable to launch."`

	// When set we connect to an already running Chrome over CDP instead of
	// launching our own, e.g. http://chrome:9222.
	ChromeURL string `envconfig:"BROWSER_CHROME_URL" description:"The URL to an existing Chrome instance. Leave empty to launch Chrome per request."`

	Headless  bool   `envconfig:"BROWSER_HEADLESS" default:"true" description:"Whether to run the browser headless."`
	UserAgent string `envconfig:"BROWSER_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36" description:"The user agent presented to the target site."`

	ViewportWidth  int `envconfig:"BROWSER_VIEWPORT_WIDTH" default:"1920"`
	ViewportHeight int `envconfig:"BROWSER_VIEWPORT_HEIGHT" default:"1080"`
}

type Flow struct {
	// Bounds for required waits. A required element or navigation that does
	// not appear within its bound fails the request.
	NavigationTimeout time.Duration `envconfig:"FLOW_NAVIGATION_TIMEOUT" default:"30s" description:"Bound for the initial page navigation."`
	ElementTimeout    time.Duration `envconfig:"FLOW_ELEMENT_TIMEOUT" default:"15s" description:"Bound for required form elements to appear."`
	RedirectTimeout   time.Duration `envconfig:"FLOW_REDIRECT_TIMEOUT" default:"30s" description:"Bound for the redirect to the identity provider."`

	// Bounds for optional waits. Expiry of these is a normal branch
	// outcome, not a failure.
	InitialButtonTimeout time.Duration `envconfig:"FLOW_INITIAL_BUTTON_TIMEOUT" default:"10s" description:"How long to look for an intermediate log-in button before assuming there is none."`
	AuthNavTimeout       time.Duration `envconfig:"FLOW_AUTH_NAV_TIMEOUT" default:"30s" description:"How long to wait for the post-login navigation before assuming the flow completed in-page."`

	// Fixed grace periods. The identity provider persists tokens
	// asynchronously after login, so there is no DOM signal to wait on.
	StepDelay   time.Duration `envconfig:"FLOW_STEP_DELAY" default:"1500ms" description:"Pause after advancing from the email page to the password page."`
	SettleDelay time.Duration `envconfig:"FLOW_SETTLE_DELAY" default:"5s" description:"Grace period after login for token-bearing requests and storage writes to complete."`

	// Abort image/stylesheet/font/media requests to speed up page loads.
	BlockResources bool `envconfig:"FLOW_BLOCK_RESOURCES" default:"true" description:"Whether to block non-essential resource types."`
}
