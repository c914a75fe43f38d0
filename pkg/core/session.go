// Package core provides the execution model types for webcheck-runner.
package core

import (
	"context"
	"time"

	"github.com/devicelab-dev/webcheck-runner/pkg/flow"
)

// Condition is the state a located element must reach before Find returns.
type Condition int

const (
	ConditionPresent   Condition = iota // Attached to the document
	ConditionVisible                    // Present and displayed
	ConditionClickable                  // Visible and enabled
)

// String returns the string representation of Condition
func (c Condition) String() string {
	switch c {
	case ConditionPresent:
		return "present"
	case ConditionVisible:
		return "visible"
	case ConditionClickable:
		return "clickable"
	default:
		return "unknown"
	}
}

// SessionOptions configures a browser session for one flow.
type SessionOptions struct {
	Headless        bool
	DriverPath      string
	PageLoadTimeout time.Duration
}

// Launcher opens browser sessions.
// Implementations: webdriver (chromedriver over W3C HTTP), cdp (chromedp), mock.
type Launcher interface {
	Open(ctx context.Context, opts SessionOptions) (Session, error)
}

// Session is one browser session owned by exactly one flow.
// Errors returned by a Session are *ExecutionError values whose category
// separates element/timeout problems from session transport failures.
type Session interface {
	// Navigate loads url in the current window
	Navigate(ctx context.Context, url string) error

	// Find polls until an element matching loc satisfies cond or timeout elapses
	Find(ctx context.Context, loc flow.Locator, cond Condition, timeout time.Duration) (Element, error)

	// PageText returns the visible text of the document body
	PageText(ctx context.Context) (string, error)

	// PageSource returns the raw markup of the current document
	PageSource(ctx context.Context) (string, error)

	// Screenshot captures the viewport as PNG
	Screenshot(ctx context.Context) ([]byte, error)

	SwitchToFrame(ctx context.Context, frame Element) error
	SwitchToDefault(ctx context.Context) error

	Cookies(ctx context.Context) ([]Cookie, error)
	AddCookie(ctx context.Context, cookie Cookie) error

	// Close tears the session down. It is called exactly once per session.
	Close() error
}

// Element is a handle to a located page element.
type Element interface {
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, error)
	Clear(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
	Click(ctx context.Context) error

	// Screenshot captures the element's bounding box as PNG
	Screenshot(ctx context.Context) ([]byte, error)
}

// Cookie is a browser cookie in the W3C WebDriver JSON shape, which is also
// the on-disk format of save_cookies / load_cookies.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Path     string `json:"path,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
	Expiry   int64  `json:"expiry,omitempty"`
	SameSite string `json:"sameSite,omitempty"`
}
