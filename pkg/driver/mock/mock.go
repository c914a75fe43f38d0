// Package mock provides an in-memory browser session for testing without a
// real browser.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devicelab-dev/webcheck-runner/pkg/core"
	"github.com/devicelab-dev/webcheck-runner/pkg/flow"
)

// Operation names used as keys of Config.Errors.
const (
	OpOpen       = "open"
	OpNavigate   = "navigate"
	OpPageText   = "page_text"
	OpPageSource = "page_source"
	OpScreenshot = "screenshot"
	OpCookies    = "cookies"
	OpAddCookie  = "add_cookie"
	OpFrame      = "frame"
	OpClose      = "close"
)

// PNG is a minimal valid PNG (1x1 transparent pixel).
var PNG = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, // PNG signature
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52, // IHDR chunk
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
	0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
	0x42, 0x60, 0x82,
}

// Element describes a fake page element. Elements are looked up by the
// resolved locator value, so "#user", "css=#user" and " #user " all hit
// the same entry.
type Element struct {
	Text       string
	Attrs      map[string]string
	Hidden     bool
	Disabled   bool
	Screenshot []byte
}

// Config configures the fake browser.
type Config struct {
	// PageText is the initial body text
	PageText string
	// PageSource is the initial markup; defaults to PageText wrapped in <html>
	PageSource string
	// Elements present on every page, keyed by locator value
	Elements map[string]*Element
	// Errors makes the named operation fail
	Errors map[string]error
	// FindErrors makes Find fail for the given locator values
	FindErrors map[string]error
	// OnClick runs after an element is clicked, e.g. to change PageText
	OnClick func(s *Session, selector string)
	// StepDelay adds artificial delay per operation
	StepDelay time.Duration
}

// Launcher is a core.Launcher handing out in-memory sessions.
type Launcher struct {
	Config Config

	mu       sync.Mutex
	sessions []*Session
	options  []core.SessionOptions
}

// New creates a new mock launcher.
func New(cfg Config) *Launcher {
	return &Launcher{Config: cfg}
}

// Open creates a session, or fails with Errors[OpOpen].
func (l *Launcher) Open(_ context.Context, opts core.SessionOptions) (core.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.options = append(l.options, opts)
	if err := l.Config.Errors[OpOpen]; err != nil {
		return nil, err
	}

	s := &Session{
		cfg:      l.Config,
		pageText: l.Config.PageText,
		source:   l.Config.PageSource,
		typed:    make(map[string]string),
	}
	l.sessions = append(l.sessions, s)
	return s, nil
}

// Sessions returns every session opened so far.
func (l *Launcher) Sessions() []*Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Session(nil), l.sessions...)
}

// Options returns the options of every Open call.
func (l *Launcher) Options() []core.SessionOptions {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]core.SessionOptions(nil), l.options...)
}

// Session is a fake browser session. It records what the flow did.
type Session struct {
	cfg Config

	mu          sync.Mutex
	pageText    string
	source      string
	url         string
	navigations []string
	typed       map[string]string
	clicks      []string
	cookies     []core.Cookie
	frame       string
	closed      int
}

func (s *Session) fail(op string) error {
	if s.cfg.StepDelay > 0 {
		time.Sleep(s.cfg.StepDelay)
	}
	return s.cfg.Errors[op]
}

// Navigate records the URL.
func (s *Session) Navigate(_ context.Context, url string) error {
	if err := s.fail(OpNavigate); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = url
	s.navigations = append(s.navigations, url)
	return nil
}

// Find returns the configured element when it satisfies cond. Missing,
// hidden or disabled elements produce a wait timeout immediately.
func (s *Session) Find(_ context.Context, loc flow.Locator, cond core.Condition, timeout time.Duration) (core.Element, error) {
	if err := s.cfg.FindErrors[loc.Value]; err != nil {
		return nil, err
	}
	spec, ok := s.cfg.Elements[loc.Value]
	if !ok {
		return nil, core.ErrWaitTimeout.WithMessage(
			fmt.Sprintf("waited %s for %s to be %s", timeout, loc, cond)).WithCause(core.ErrElementNotFound)
	}
	if spec.Hidden && cond >= core.ConditionVisible {
		return nil, core.ErrWaitTimeout.WithMessage(fmt.Sprintf("%s is not visible", loc))
	}
	if spec.Disabled && cond == core.ConditionClickable {
		return nil, core.ErrWaitTimeout.WithMessage(fmt.Sprintf("%s is not clickable", loc))
	}
	return &element{session: s, selector: loc.Value, spec: spec}, nil
}

// PageText returns the current body text.
func (s *Session) PageText(context.Context) (string, error) {
	if err := s.fail(OpPageText); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageText, nil
}

// PageSource returns the current markup.
func (s *Session) PageSource(context.Context) (string, error) {
	if err := s.fail(OpPageSource); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source != "" {
		return s.source, nil
	}
	return "<html><body>" + s.pageText + "</body></html>", nil
}

// Screenshot returns PNG.
func (s *Session) Screenshot(context.Context) ([]byte, error) {
	if err := s.fail(OpScreenshot); err != nil {
		return nil, err
	}
	return PNG, nil
}

// SwitchToFrame records the frame selector.
func (s *Session) SwitchToFrame(_ context.Context, frame core.Element) error {
	if err := s.fail(OpFrame); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := frame.(*element); ok {
		s.frame = el.selector
	}
	return nil
}

// SwitchToDefault clears the frame.
func (s *Session) SwitchToDefault(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = ""
	return nil
}

// Cookies returns the stored cookies.
func (s *Session) Cookies(context.Context) ([]core.Cookie, error) {
	if err := s.fail(OpCookies); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Cookie(nil), s.cookies...), nil
}

// AddCookie stores a cookie. Cookies without a name are rejected the way
// a browser rejects them.
func (s *Session) AddCookie(_ context.Context, c core.Cookie) error {
	if err := s.fail(OpAddCookie); err != nil {
		return err
	}
	if c.Name == "" {
		return core.ErrSessionFailed.WithMessage("invalid cookie: missing name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookies = append(s.cookies, c)
	return nil
}

// Close counts close calls.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	return s.cfg.Errors[OpClose]
}

// SetPageText replaces the body text, typically from an OnClick hook.
func (s *Session) SetPageText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageText = text
	s.source = ""
}

// URL returns the last navigated URL.
func (s *Session) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// Navigations returns every navigated URL in order.
func (s *Session) Navigations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigations...)
}

// Typed returns the last text entered into the element.
func (s *Session) Typed(selector string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typed[selector]
}

// Clicks returns clicked selectors in order.
func (s *Session) Clicks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.clicks...)
}

// Frame returns the selector of the frame the session is in, "" for the top document.
func (s *Session) Frame() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// CloseCount returns how many times Close was called.
func (s *Session) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type element struct {
	session  *Session
	selector string
	spec     *Element
}

func (e *element) Text(context.Context) (string, error) {
	return e.spec.Text, nil
}

func (e *element) Attribute(_ context.Context, name string) (string, error) {
	return e.spec.Attrs[name], nil
}

func (e *element) Clear(context.Context) error {
	e.session.mu.Lock()
	defer e.session.mu.Unlock()
	e.session.typed[e.selector] = ""
	return nil
}

func (e *element) SendKeys(_ context.Context, text string) error {
	e.session.mu.Lock()
	defer e.session.mu.Unlock()
	e.session.typed[e.selector] += text
	return nil
}

func (e *element) Click(context.Context) error {
	e.session.mu.Lock()
	e.session.clicks = append(e.session.clicks, e.selector)
	e.session.mu.Unlock()

	if e.session.cfg.OnClick != nil {
		e.session.cfg.OnClick(e.session, e.selector)
	}
	return nil
}

func (e *element) Screenshot(context.Context) ([]byte, error) {
	if e.spec.Screenshot != nil {
		return e.spec.Screenshot, nil
	}
	return PNG, nil
}
