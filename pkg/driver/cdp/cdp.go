// Package cdp implements core.Session with chromedp over the Chrome
// DevTools Protocol. No chromedriver is needed; Chrome itself is launched
// (or an existing DevTools endpoint is attached to).
package cdp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/devicelab-dev/webcheck-runner/pkg/core"
	"github.com/devicelab-dev/webcheck-runner/pkg/flow"
	"github.com/devicelab-dev/webcheck-runner/pkg/logger"
)

const (
	// actionTimeout bounds element commands that have no wait of their own
	actionTimeout = 30 * time.Second
	// defaultPageLoadTimeout bounds Navigate when SessionOptions leaves it unset
	defaultPageLoadTimeout = 60 * time.Second
)

// Launcher starts Chrome for each session. With RemoteURL set it attaches
// to a running browser's DevTools websocket instead.
type Launcher struct {
	RemoteURL string
}

// NewLauncher creates a launcher. remoteURL may be empty.
func NewLauncher(remoteURL string) *Launcher {
	return &Launcher{RemoteURL: remoteURL}
}

// AllocatorOptions returns the exec allocator options for opts.
// DriverPath, when set, is the Chrome executable.
func AllocatorOptions(opts core.SessionOptions) []chromedp.ExecAllocatorOption {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)
	if opts.DriverPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.DriverPath))
	}
	return allocOpts
}

// Open launches (or attaches to) Chrome and opens a tab.
func (l *Launcher) Open(ctx context.Context, opts core.SessionOptions) (core.Session, error) {
	// The browser outlives the caller's context; Close tears it down.
	var allocCtx context.Context
	var cancelAlloc context.CancelFunc
	if l.RemoteURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(context.Background(), l.RemoteURL)
	} else {
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(context.Background(), AllocatorOptions(opts)...)
	}

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, v ...interface{}) {
			logger.Debug("chromedp: "+format, v...)
		}),
	)

	if err := start(ctx, browserCtx, cancelBrowser, chromedp.Run); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, core.ErrSessionFailed.WithMessage("failed to start Chrome").WithCause(err)
	}
	logger.Info("chrome session started (headless=%v)", opts.Headless)

	pageLoad := opts.PageLoadTimeout
	if pageLoad <= 0 {
		pageLoad = defaultPageLoadTimeout
	}
	return &Session{
		ctx:           browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		pageLoad:      pageLoad,
	}, nil
}

// Session is one Chrome tab driven through chromedp.
type Session struct {
	ctx           context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	pageLoad      time.Duration

	frame *cdp.Node // current iframe, nil for the top document
}

// start runs the first command on browserCtx itself: chromedp binds Chrome
// (or the remote connection) to the context of that first Run, so it must
// outlive Open. The caller's ctx can abort only the start.
func start(caller, browserCtx context.Context, cancelBrowser context.CancelFunc,
	run func(context.Context, ...chromedp.Action) error) error {
	stop := context.AfterFunc(caller, cancelBrowser)
	err := run(browserCtx)
	if !stop() && err == nil {
		// caller cancelled after Chrome came up; cancelBrowser already ran
		err = caller.Err()
	}
	return err
}

// mergeCancel derives a context from the browser context that is also
// cancelled when caller is.
func mergeCancel(browser, caller context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(browser)
	stop := context.AfterFunc(caller, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// run executes actions bounded by timeout and the caller's context.
func (s *Session) run(caller context.Context, timeout time.Duration, what string, actions ...chromedp.Action) error {
	ctx, cancel := mergeCancel(s.ctx, caller)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
	defer cancelTimeout()

	return classify(chromedp.Run(ctx, actions...), caller, what)
}

// classify maps chromedp errors: an expired wait is an element error, a
// cancelled caller is passed through, everything else is a session error.
func classify(err error, caller context.Context, what string) error {
	if err == nil {
		return nil
	}
	switch {
	case caller.Err() != nil:
		return caller.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return core.ErrWaitTimeout.WithMessage(what).WithCause(err)
	default:
		return core.ErrSessionFailed.WithMessage(what).WithCause(err)
	}
}

// queryOptions selects chromedp's query mode for loc, scoped to the current frame.
func (s *Session) queryOptions(loc flow.Locator) []chromedp.QueryOption {
	opts := []chromedp.QueryOption{chromedp.ByQuery}
	if loc.Strategy == flow.StrategyXPath {
		opts = []chromedp.QueryOption{chromedp.BySearch}
	}
	if s.frame != nil {
		opts = append(opts, chromedp.FromNode(s.frame))
	}
	return opts
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, s.pageLoad, "navigate to "+url, chromedp.Navigate(url))
}

// Find waits for loc to reach cond and returns its first match.
func (s *Session) Find(ctx context.Context, loc flow.Locator, cond core.Condition, timeout time.Duration) (core.Element, error) {
	opts := s.queryOptions(loc)

	var actions []chromedp.Action
	switch cond {
	case core.ConditionVisible:
		actions = append(actions, chromedp.WaitVisible(loc.Value, opts...))
	case core.ConditionClickable:
		actions = append(actions, chromedp.WaitVisible(loc.Value, opts...), chromedp.WaitEnabled(loc.Value, opts...))
	default:
		actions = append(actions, chromedp.WaitReady(loc.Value, opts...))
	}

	var nodes []*cdp.Node
	actions = append(actions, chromedp.Nodes(loc.Value, &nodes, opts...))

	what := fmt.Sprintf("waited %s for %s to be %s", timeout, loc, cond)
	if err := s.run(ctx, timeout, what, actions...); err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, core.ErrElementNotFound.WithMessage(loc.String())
	}
	return &element{session: s, node: nodes[0]}, nil
}

// PageText returns the innerText of the current document's body, or the
// markup when the body cannot be read. An empty body is "".
func (s *Session) PageText(ctx context.Context) (string, error) {
	var text string
	var err error
	if s.frame != nil {
		err = s.run(ctx, actionTimeout, "read frame text",
			chromedp.Text("body", &text, chromedp.ByQuery, chromedp.FromNode(s.frame)))
	} else {
		// throws without a body, which selects the markup fallback
		err = s.run(ctx, actionTimeout, "read page text",
			chromedp.Evaluate(`document.body.innerText`, &text))
	}
	return bodyTextOr(ctx, text, err, s.PageSource)
}

// bodyTextOr returns text unless reading it failed, in which case the
// document source is returned instead.
func bodyTextOr(ctx context.Context, text string, err error, source func(context.Context) (string, error)) (string, error) {
	if err == nil {
		return text, nil
	}
	if ctx.Err() != nil {
		return "", err
	}
	logger.Debug("body text unavailable, using page source: %v", err)
	return source(ctx)
}

// PageSource returns the outer HTML of the current document.
func (s *Session) PageSource(ctx context.Context) (string, error) {
	opts := []chromedp.QueryOption{chromedp.ByQuery}
	if s.frame != nil {
		opts = append(opts, chromedp.FromNode(s.frame))
	}
	var html string
	err := s.run(ctx, actionTimeout, "read page source", chromedp.OuterHTML("html", &html, opts...))
	return html, err
}

// Screenshot captures the viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, actionTimeout, "take screenshot", chromedp.CaptureScreenshot(&buf))
	return buf, err
}

// SwitchToFrame scopes later queries to the iframe element.
func (s *Session) SwitchToFrame(_ context.Context, frame core.Element) error {
	el, ok := frame.(*element)
	if !ok {
		return core.ErrSessionFailed.WithMessage(fmt.Sprintf("frame element of type %T is not a cdp element", frame))
	}
	s.frame = el.node
	return nil
}

// SwitchToDefault returns to the top document.
func (s *Session) SwitchToDefault(context.Context) error {
	s.frame = nil
	return nil
}

// Cookies returns the cookies of the current page.
func (s *Session) Cookies(ctx context.Context) ([]core.Cookie, error) {
	var cookies []core.Cookie
	err := s.run(ctx, actionTimeout, "get cookies", chromedp.ActionFunc(func(ctx context.Context) error {
		list, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range list {
			cookies = append(cookies, fromNetworkCookie(c))
		}
		return nil
	}))
	return cookies, err
}

// AddCookie sets one cookie. Cookies without a domain are scoped to the
// current URL.
func (s *Session) AddCookie(ctx context.Context, cookie core.Cookie) error {
	return s.run(ctx, actionTimeout, "add cookie "+cookie.Name, chromedp.ActionFunc(func(ctx context.Context) error {
		params := network.SetCookie(cookie.Name, cookie.Value).
			WithPath(cookie.Path).
			WithSecure(cookie.Secure).
			WithHTTPOnly(cookie.HTTPOnly)
		if cookie.Domain != "" {
			params = params.WithDomain(cookie.Domain)
		} else {
			var url string
			if err := chromedp.Location(&url).Do(ctx); err != nil {
				return err
			}
			params = params.WithURL(url)
		}
		if cookie.Expiry > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(cookie.Expiry, 0))
			params = params.WithExpires(&expires)
		}
		return params.Do(ctx)
	}))
}

// Close closes the tab and the browser.
func (s *Session) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancelBrowser()
	s.cancelAlloc()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close chrome: %w", err)
	}
	return nil
}

func fromNetworkCookie(c *network.Cookie) core.Cookie {
	out := core.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Domain:   c.Domain,
		Secure:   c.Secure,
		HTTPOnly: c.HTTPOnly,
		SameSite: c.SameSite.String(),
	}
	if !c.Session && c.Expires > 0 {
		out.Expiry = int64(c.Expires)
	}
	return out
}

type element struct {
	session *Session
	node    *cdp.Node
}

func (e *element) ids() []cdp.NodeID {
	return []cdp.NodeID{e.node.NodeID}
}

func (e *element) Text(ctx context.Context) (string, error) {
	var text string
	err := e.session.run(ctx, actionTimeout, "get element text", chromedp.Text(e.ids(), &text, chromedp.ByNodeID))
	return text, err
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	var value string
	var ok bool
	err := e.session.run(ctx, actionTimeout, "get attribute "+name,
		chromedp.AttributeValue(e.ids(), name, &value, &ok, chromedp.ByNodeID))
	return value, err
}

func (e *element) Clear(ctx context.Context) error {
	return e.session.run(ctx, actionTimeout, "clear element", chromedp.Clear(e.ids(), chromedp.ByNodeID))
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	return e.session.run(ctx, actionTimeout, "send keys", chromedp.SendKeys(e.ids(), text, chromedp.ByNodeID))
}

func (e *element) Click(ctx context.Context) error {
	return e.session.run(ctx, actionTimeout, "click element", chromedp.Click(e.ids(), chromedp.ByNodeID))
}

func (e *element) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := e.session.run(ctx, actionTimeout, "element screenshot", chromedp.Screenshot(e.ids(), &buf, chromedp.ByNodeID))
	return buf, err
}
