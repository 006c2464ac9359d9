package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"

	"github.com/tokenrelay/tokenrelay/pkg/browser"
	"github.com/tokenrelay/tokenrelay/pkg/config"
	"github.com/tokenrelay/tokenrelay/pkg/types"
)

const (
	elementPollInterval = 500 * time.Millisecond
	navPollInterval     = time.Second

	// Quick probe used to decide which branch a flow takes, e.g. whether
	// the password field is already on the email page.
	branchProbeTimeout = 2 * time.Second
)

// state names one step of the login sequence. Transitions are linear except
// for the two optional branches (the intermediate log-in button and the
// single-page email+password variant).
type state int

const (
	stateInit state = iota
	stateNavigate
	stateInitialButton
	stateRedirectWait
	stateEnterEmail
	stateAdvance
	stateEnterPassword
	stateSubmit
	stateAuthWait
	stateSettle
	stateCapture
	stateDone
)

func (s state) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateNavigate:
		return "navigate"
	case stateInitialButton:
		return "initial_login_button"
	case stateRedirectWait:
		return "redirect_wait"
	case stateEnterEmail:
		return "enter_email"
	case stateAdvance:
		return "advance_to_password"
	case stateEnterPassword:
		return "enter_password"
	case stateSubmit:
		return "submit"
	case stateAuthWait:
		return "auth_wait"
	case stateSettle:
		return "settle"
	case stateCapture:
		return "capture"
	case stateDone:
		return "done"
	}
	return "unknown"
}

// Engine drives headless-browser login flows against the identity
// provider's sign-in pages and extracts the bearer token they produce.
type Engine struct {
	cfg      *config.ServerConfig
	browsers *browser.Manager

	// Selectors can be replaced to match a deployment with different
	// markup.
	Selectors Selectors
}

func NewEngine(cfg *config.ServerConfig, browsers *browser.Manager) *Engine {
	return &Engine{
		cfg:       cfg,
		browsers:  browsers,
		Selectors: DefaultSelectors(),
	}
}

// RunLogin drives one exclusive browser session through the login sequence
// and returns the captured token. The session is destroyed on every exit
// path, after a best-effort cleanup of authentication artifacts.
func (e *Engine) RunLogin(ctx context.Context, req *types.LoginRequest) (*types.LoginResult, error) {
	start := time.Now()

	b, release, err := e.browsers.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	sess := newSession(log.Logger, b, release, e.cfg.Browser.ChromeURL == "")
	defer sess.Close()
	defer sess.Cleanup()

	sess.logger.Info().Str("target_url", req.URL).Msg("starting login flow")

	r := &run{engine: e, session: sess, request: req}
	if err := r.exec(ctx); err != nil {
		return nil, err
	}

	token := sess.Token()
	if token == nil {
		return nil, ErrTokenNotFound
	}

	sess.Cleanup()

	capturedAt := time.Now()
	sess.logger.Info().
		Str("source", string(token.Source)).
		Dur("duration", capturedAt.Sub(start)).
		Msg("login flow succeeded")

	return &types.LoginResult{
		Token:      token,
		CapturedAt: capturedAt,
		Duration:   capturedAt.Sub(start),
	}, nil
}

// run is the per-request execution of the state machine.
type run struct {
	engine  *Engine
	session *Session
	request *types.LoginRequest

	page   *rod.Page
	router *rod.HijackRouter

	// URL recorded before a click that is expected to navigate.
	urlBeforeClick string
}

func (r *run) exec(ctx context.Context) error {
	defer func() {
		if r.router != nil {
			if err := r.router.Stop(); err != nil {
				r.session.logger.Warn().Err(err).Msg("error stopping hijack router")
			}
		}
	}()

	for st := stateInit; st != stateDone; {
		r.session.logger.Debug().Str("state", st.String()).Msg("entering state")
		next, err := r.step(ctx, st)
		if err != nil {
			r.session.logger.Error().Err(err).Str("state", st.String()).Msg("login flow failed")
			return err
		}
		st = next
	}
	return nil
}

func (r *run) step(ctx context.Context, st state) (state, error) {
	switch st {
	case stateInit:
		return r.stepInit()
	case stateNavigate:
		return r.stepNavigate()
	case stateInitialButton:
		return r.stepInitialButton(ctx)
	case stateRedirectWait:
		return r.stepRedirectWait(ctx)
	case stateEnterEmail:
		return r.stepEnterEmail(ctx)
	case stateAdvance:
		return r.stepAdvance(ctx)
	case stateEnterPassword:
		return r.stepEnterPassword(ctx)
	case stateSubmit:
		return r.stepSubmit(ctx)
	case stateAuthWait:
		return r.stepAuthWait(ctx)
	case stateSettle:
		return r.stepSettle(ctx)
	case stateCapture:
		return r.stepCapture()
	}
	return stateDone, fmt.Errorf("unexpected flow state %q", st)
}

// stepInit opens the session page, applies the desktop viewport and user
// agent, and wires the network observer before any navigation happens.
func (r *run) stepInit() (state, error) {
	page, err := r.session.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return stateDone, fmt.Errorf("error creating page: %w", err)
	}
	r.page = page
	r.session.page = page

	cfg := r.engine.cfg.Browser
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.ViewportWidth,
		Height:            cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return stateDone, fmt.Errorf("error setting viewport: %w", err)
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: cfg.UserAgent}); err != nil {
		return stateDone, fmt.Errorf("error setting user agent: %w", err)
	}
	// A cached response would skip the network request carrying the token.
	if err := (proto.NetworkSetCacheDisabled{CacheDisabled: true}).Call(page); err != nil {
		return stateDone, fmt.Errorf("error disabling cache: %w", err)
	}

	router, err := r.session.startNetworkCapture(r.engine.cfg.Flow.BlockResources)
	if err != nil {
		return stateDone, err
	}
	r.router = router

	return stateNavigate, nil
}

// stepNavigate loads the target URL. DOM-content-loaded is the
// navigation-complete signal, applied uniformly across the flow.
func (r *run) stepNavigate() (state, error) {
	timeout := r.engine.cfg.Flow.NavigationTimeout
	nav := r.page.Timeout(timeout)
	wait := nav.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)

	if err := nav.Navigate(r.request.URL); err != nil {
		return stateDone, fmt.Errorf("error navigating to target: %w", err)
	}
	wait()
	if nav.GetContext().Err() != nil {
		return stateDone, &NavigationTimeoutError{Stage: "initial page", Timeout: timeout}
	}

	r.session.logger.Info().Str("url", r.currentURL()).Msg("target page loaded")
	return stateInitialButton, nil
}

// stepInitialButton clicks the intermediate log-in affordance some
// deployments show before the identity provider redirect. Its absence is a
// normal branch outcome, not an error.
func (r *run) stepInitialButton(ctx context.Context) (state, error) {
	el, err := r.findElement(ctx, r.engine.Selectors.InitialLogin, r.engine.cfg.Flow.InitialButtonTimeout, "initial log-in button")
	if err != nil {
		r.session.logger.Info().Msg("no intermediate log-in button, proceeding to credentials")
		return stateEnterEmail, nil
	}

	r.urlBeforeClick = r.currentURL()
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return stateDone, fmt.Errorf("error clicking initial log-in button: %w", err)
	}
	return stateRedirectWait, nil
}

// stepRedirectWait waits for the navigation to the identity provider's own
// domain. This navigation is required, so its timeout is fatal.
func (r *run) stepRedirectWait(ctx context.Context) (state, error) {
	timeout := r.engine.cfg.Flow.RedirectTimeout
	navigated, err := r.waitForNewURL(ctx, r.urlBeforeClick, timeout)
	if err != nil {
		return stateDone, err
	}
	if !navigated {
		return stateDone, &NavigationTimeoutError{Stage: "identity provider redirect", Timeout: timeout}
	}

	r.session.logger.Info().Str("url", r.currentURL()).Msg("redirected to identity provider")
	return stateEnterEmail, nil
}

func (r *run) stepEnterEmail(ctx context.Context) (state, error) {
	el, err := r.findElement(ctx, r.engine.Selectors.Email, r.engine.cfg.Flow.ElementTimeout, "email input")
	if err != nil {
		return stateDone, err
	}
	if err := r.typeInto(el, r.request.Username); err != nil {
		return stateDone, fmt.Errorf("error entering username: %w", err)
	}
	r.session.logger.Info().Msg("username entered")
	return stateAdvance, nil
}

// stepAdvance bridges the two identity provider UI variants: single-page
// forms already show the password field, multi-page ones need a Next click
// first.
func (r *run) stepAdvance(ctx context.Context) (state, error) {
	if _, err := r.findElement(ctx, r.engine.Selectors.Password, branchProbeTimeout, "password input"); err == nil {
		r.session.logger.Info().Msg("password field already present")
		return stateEnterPassword, nil
	}

	el, err := r.findElement(ctx, r.engine.Selectors.Next, r.engine.cfg.Flow.ElementTimeout, "next button")
	if err != nil {
		return stateDone, err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return stateDone, fmt.Errorf("error clicking next button: %w", err)
	}

	if err := r.sleep(ctx, r.engine.cfg.Flow.StepDelay); err != nil {
		return stateDone, err
	}
	return stateEnterPassword, nil
}

func (r *run) stepEnterPassword(ctx context.Context) (state, error) {
	el, err := r.findElement(ctx, r.engine.Selectors.Password, r.engine.cfg.Flow.ElementTimeout, "password input")
	if err != nil {
		return stateDone, err
	}
	if err := r.typeInto(el, r.request.Password); err != nil {
		return stateDone, fmt.Errorf("error entering password: %w", err)
	}
	r.session.logger.Info().Msg("password entered")
	return stateSubmit, nil
}

func (r *run) stepSubmit(ctx context.Context) (state, error) {
	el, err := r.findElement(ctx, r.engine.Selectors.Submit, r.engine.cfg.Flow.ElementTimeout, "log-in button")
	if err != nil {
		return stateDone, err
	}

	r.urlBeforeClick = r.currentURL()
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return stateDone, fmt.Errorf("error clicking log-in button: %w", err)
	}
	r.session.logger.Info().Msg("credentials submitted")
	return stateAuthWait, nil
}

// stepAuthWait waits for the post-login navigation. Some deployments
// complete authentication with an in-page redirect instead of a full
// navigation, so expiry here is not fatal.
func (r *run) stepAuthWait(ctx context.Context) (state, error) {
	navigated, err := r.waitForNewURL(ctx, r.urlBeforeClick, r.engine.cfg.Flow.AuthNavTimeout)
	if err != nil {
		return stateDone, err
	}
	if !navigated {
		r.session.logger.Info().Msg("no post-login navigation observed, assuming authenticated")
	} else {
		r.session.logger.Info().Str("url", r.currentURL()).Msg("authenticated")
	}
	return stateSettle, nil
}

// stepSettle waits a grace period for asynchronous token-bearing requests
// and storage writes. There is no DOM signal for token persistence.
func (r *run) stepSettle(ctx context.Context) (state, error) {
	if err := r.sleep(ctx, r.engine.cfg.Flow.SettleDelay); err != nil {
		return stateDone, err
	}
	return stateCapture, nil
}

func (r *run) stepCapture() (state, error) {
	r.session.captureFromStorage()
	return stateDone, nil
}

// findElement tries the selector strategies in order until one matches a
// visible element, polling until the bound expires.
func (r *run) findElement(ctx context.Context, selectors []string, timeout time.Duration, field string) (*rod.Element, error) {
	attempts := uint(timeout/elementPollInterval) + 1

	el, err := retry.DoWithData(func() (*rod.Element, error) {
		probe := r.page.Sleeper(rod.NotFoundSleeper)
		for _, sel := range selectors {
			el, err := probe.Element(sel)
			if err != nil {
				continue
			}
			if visible, verr := el.Visible(); verr != nil || !visible {
				continue
			}
			return el, nil
		}
		return nil, fmt.Errorf("no %s selector matched", field)
	},
		retry.Attempts(attempts),
		retry.Delay(elementPollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ElementTimeoutError{Field: field, Timeout: timeout}
	}
	return el, nil
}

// waitForNewURL polls the page URL until it differs from initialURL.
// Reports false when the bound expires without a navigation.
func (r *run) waitForNewURL(ctx context.Context, initialURL string, timeout time.Duration) (bool, error) {
	start := time.Now()
	for time.Since(start) < timeout {
		if current := r.currentURL(); current != "" && current != initialURL {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(navPollInterval):
		}
	}
	return false, nil
}

func (r *run) currentURL() string {
	info, err := r.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// typeInto focuses a field, clears it, and enters the value. The value is
// never logged.
func (r *run) typeInto(el *rod.Element, value string) error {
	if err := el.Focus(); err != nil {
		r.session.logger.Warn().Err(err).Msg("failed to focus input, continuing anyway")
	}
	if err := el.SelectAllText(); err != nil {
		r.session.logger.Warn().Err(err).Msg("failed to select input text, continuing anyway")
	}
	return el.Input(value)
}

func (r *run) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
