package webdriver

import (
	"context"
	"fmt"
	"time"

	"github.com/devicelab-dev/webcheck-runner/pkg/core"
	"github.com/devicelab-dev/webcheck-runner/pkg/flow"
	"github.com/devicelab-dev/webcheck-runner/pkg/logger"
)

// pollInterval is the delay between element lookups while waiting.
const pollInterval = 200 * time.Millisecond

// closeTimeout bounds the DELETE /session request on Close.
const closeTimeout = 10 * time.Second

// Session implements core.Session on a WebDriver client.
type Session struct {
	client  *Client
	service *Service // nil for remote servers
}

// NewSession wraps a connected client. service, when non-nil, is stopped
// on Close.
func NewSession(client *Client, service *Service) *Session {
	return &Session{client: client, service: service}
}

// Navigate loads url.
func (s *Session) Navigate(ctx context.Context, url string) error {
	return classify(s.client.NavigateTo(ctx, url), "navigate to "+url)
}

// Find polls until the element exists and satisfies cond.
func (s *Session) Find(ctx context.Context, loc flow.Locator, cond core.Condition, timeout time.Duration) (core.Element, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error

	for {
		id, err := s.client.FindElement(ctx, string(loc.Strategy), loc.Value)
		switch {
		case err == nil:
			ok, checkErr := s.satisfies(ctx, id, cond)
			if checkErr != nil && !isCode(checkErr, codeStaleElement) {
				return nil, classify(checkErr, fmt.Sprintf("check %s", loc))
			}
			if ok {
				return &element{client: s.client, id: id}, nil
			}
			lastErr = fmt.Errorf("%s found but not %s", loc, cond)
		case isCode(err, codeNoSuchElement, codeStaleElement):
			lastErr = err
		default:
			return nil, classify(err, fmt.Sprintf("find %s", loc))
		}

		if !time.Now().Before(deadline) {
			return nil, core.ErrWaitTimeout.
				WithMessage(fmt.Sprintf("waited %s for %s to be %s", timeout, loc, cond)).
				WithCause(lastErr)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (s *Session) satisfies(ctx context.Context, id string, cond core.Condition) (bool, error) {
	if cond == core.ConditionPresent {
		return true, nil
	}
	displayed, err := s.client.IsElementDisplayed(ctx, id)
	if err != nil || !displayed {
		return false, err
	}
	if cond == core.ConditionVisible {
		return true, nil
	}
	return s.client.IsElementEnabled(ctx, id)
}

// PageText returns the body's rendered text, falling back to the page
// source when the body cannot be read.
func (s *Session) PageText(ctx context.Context) (string, error) {
	id, err := s.client.FindElement(ctx, string(flow.StrategyCSS), "body")
	if err == nil {
		var text string
		if text, err = s.client.GetElementText(ctx, id); err == nil {
			return text, nil
		}
	}
	logger.Debug("body text unavailable, using page source: %v", err)
	return s.PageSource(ctx)
}

// PageSource returns the document markup.
func (s *Session) PageSource(ctx context.Context) (string, error) {
	src, err := s.client.Source(ctx)
	return src, classify(err, "read page source")
}

// Screenshot captures the viewport.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := s.client.Screenshot(ctx)
	return data, classify(err, "take screenshot")
}

// SwitchToFrame enters frame, which must come from this session.
func (s *Session) SwitchToFrame(ctx context.Context, frame core.Element) error {
	el, ok := frame.(*element)
	if !ok {
		return core.ErrSessionFailed.WithMessage(fmt.Sprintf("frame element of type %T is not a webdriver element", frame))
	}
	return classify(s.client.SwitchToFrame(ctx, el.id), "switch to frame")
}

// SwitchToDefault returns to the top document.
func (s *Session) SwitchToDefault(ctx context.Context) error {
	return classify(s.client.SwitchToDefault(ctx), "switch to default content")
}

// Cookies returns the document's cookies.
func (s *Session) Cookies(ctx context.Context) ([]core.Cookie, error) {
	cookies, err := s.client.GetCookies(ctx)
	return cookies, classify(err, "get cookies")
}

// AddCookie adds one cookie.
func (s *Session) AddCookie(ctx context.Context, cookie core.Cookie) error {
	return classify(s.client.AddCookie(ctx, cookie), "add cookie "+cookie.Name)
}

// Close deletes the session and stops the driver service if this session
// started it.
func (s *Session) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	err := s.client.Disconnect(ctx)
	if s.service != nil {
		s.service.Stop()
	}
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

type element struct {
	client *Client
	id     string
}

func (e *element) Text(ctx context.Context) (string, error) {
	text, err := e.client.GetElementText(ctx, e.id)
	return text, classify(err, "get element text")
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	value, err := e.client.GetElementAttribute(ctx, e.id, name)
	return value, classify(err, "get attribute "+name)
}

func (e *element) Clear(ctx context.Context) error {
	return classify(e.client.ClearElement(ctx, e.id), "clear element")
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	return classify(e.client.SendKeysToElement(ctx, e.id, text), "send keys")
}

func (e *element) Click(ctx context.Context) error {
	return classify(e.client.ClickElement(ctx, e.id), "click element")
}

func (e *element) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := e.client.ElementScreenshot(ctx, e.id)
	return data, classify(err, "element screenshot")
}
