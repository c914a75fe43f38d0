// Package webdriver implements core.Session over the W3C WebDriver HTTP
// protocol, talking to chromedriver or any remote WebDriver server.
package webdriver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/devicelab-dev/webcheck-runner/pkg/core"
)

// W3C WebDriver element identifier key (standard constant)
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// W3C error codes the session layer distinguishes.
const (
	codeNoSuchElement = "no such element"
	codeStaleElement  = "stale element reference"
	codeTimeout       = "timeout"
	codeScriptTimeout = "script timeout"
	codeNoSuchFrame   = "no such frame"
)

// ProtocolError is an error response from the WebDriver server.
type ProtocolError struct {
	StatusCode int
	Code       string // W3C error code, e.g. "no such element"
	Message    string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Client handles HTTP communication with a WebDriver server.
type Client struct {
	serverURL string
	sessionID string
	client    *http.Client
}

// NewClient creates a new WebDriver client.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		client: &http.Client{
			Timeout: 2 * time.Minute, // Page loads can be slow
		},
	}
}

// SessionID returns the current session ID.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Status reports whether the server is ready to create sessions.
func (c *Client) Status(ctx context.Context) (bool, error) {
	resp, err := c.get(ctx, "/status")
	if err != nil {
		return false, err
	}
	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return false, fmt.Errorf("invalid status response")
	}
	ready, _ := value["ready"].(bool)
	return ready, nil
}

// Connect creates a new session with the given capabilities.
func (c *Client) Connect(ctx context.Context, capabilities map[string]interface{}) error {
	body := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": capabilities,
		},
	}

	resp, err := c.post(ctx, "/session", body)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("invalid session response")
	}

	c.sessionID, _ = value["sessionId"].(string)
	if c.sessionID == "" {
		return fmt.Errorf("no session ID in response")
	}
	return nil
}

// Disconnect closes the session.
func (c *Client) Disconnect(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}
	_, err := c.delete(ctx, c.sessionPath())
	c.sessionID = ""
	return err
}

// SetPageLoadTimeout bounds navigation.
func (c *Client) SetPageLoadTimeout(ctx context.Context, timeout time.Duration) error {
	_, err := c.post(ctx, c.sessionPath()+"/timeouts", map[string]interface{}{
		"pageLoad": timeout.Milliseconds(),
	})
	return err
}

// Navigation

// NavigateTo loads url in the current browsing context.
func (c *Client) NavigateTo(ctx context.Context, url string) error {
	_, err := c.post(ctx, c.sessionPath()+"/url", map[string]interface{}{
		"url": url,
	})
	return err
}

// Source returns the page source.
func (c *Client) Source(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, c.sessionPath()+"/source")
	if err != nil {
		return "", err
	}
	source, _ := resp["value"].(string)
	return source, nil
}

// Screenshot returns a screenshot of the viewport as PNG bytes.
func (c *Client) Screenshot(ctx context.Context) ([]byte, error) {
	resp, err := c.get(ctx, c.sessionPath()+"/screenshot")
	if err != nil {
		return nil, err
	}
	return decodeScreenshot(resp)
}

// Element Operations

// FindElement finds a single element.
func (c *Client) FindElement(ctx context.Context, strategy, value string) (string, error) {
	body := map[string]interface{}{
		"using": strategy,
		"value": value,
	}

	resp, err := c.post(ctx, c.sessionPath()+"/element", body)
	if err != nil {
		return "", err
	}

	elemValue, ok := resp["value"].(map[string]interface{})
	if !ok {
		return "", &ProtocolError{Code: codeNoSuchElement, Message: "empty element response"}
	}

	id := extractElementID(elemValue)
	if id == "" {
		return "", &ProtocolError{Code: codeNoSuchElement, Message: "no element reference in response"}
	}
	return id, nil
}

// ClickElement clicks an element.
func (c *Client) ClickElement(ctx context.Context, elementID string) error {
	_, err := c.post(ctx, c.elementPath(elementID)+"/click", map[string]interface{}{})
	return err
}

// ClearElement clears an element's text.
func (c *Client) ClearElement(ctx context.Context, elementID string) error {
	_, err := c.post(ctx, c.elementPath(elementID)+"/clear", map[string]interface{}{})
	return err
}

// SendKeysToElement types text into an element.
func (c *Client) SendKeysToElement(ctx context.Context, elementID, text string) error {
	_, err := c.post(ctx, c.elementPath(elementID)+"/value", map[string]interface{}{
		"text": text,
	})
	return err
}

// GetElementText returns an element's rendered text.
func (c *Client) GetElementText(ctx context.Context, elementID string) (string, error) {
	resp, err := c.get(ctx, c.elementPath(elementID)+"/text")
	if err != nil {
		return "", err
	}
	text, _ := resp["value"].(string)
	return text, nil
}

// GetElementAttribute returns an element's attribute value.
func (c *Client) GetElementAttribute(ctx context.Context, elementID, name string) (string, error) {
	resp, err := c.get(ctx, c.elementPath(elementID)+"/attribute/"+name)
	if err != nil {
		return "", err
	}
	value, _ := resp["value"].(string)
	return value, nil
}

// IsElementDisplayed checks if element is visible.
func (c *Client) IsElementDisplayed(ctx context.Context, elementID string) (bool, error) {
	resp, err := c.get(ctx, c.elementPath(elementID)+"/displayed")
	if err != nil {
		return false, err
	}
	displayed, _ := resp["value"].(bool)
	return displayed, nil
}

// IsElementEnabled checks if element is enabled.
func (c *Client) IsElementEnabled(ctx context.Context, elementID string) (bool, error) {
	resp, err := c.get(ctx, c.elementPath(elementID)+"/enabled")
	if err != nil {
		return false, err
	}
	enabled, _ := resp["value"].(bool)
	return enabled, nil
}

// ElementScreenshot captures the element's bounding box as PNG bytes.
func (c *Client) ElementScreenshot(ctx context.Context, elementID string) ([]byte, error) {
	resp, err := c.get(ctx, c.elementPath(elementID)+"/screenshot")
	if err != nil {
		return nil, err
	}
	return decodeScreenshot(resp)
}

// Frames

// SwitchToFrame enters the frame element.
func (c *Client) SwitchToFrame(ctx context.Context, elementID string) error {
	_, err := c.post(ctx, c.sessionPath()+"/frame", map[string]interface{}{
		"id": map[string]interface{}{w3cElementKey: elementID},
	})
	return err
}

// SwitchToDefault returns to the top-level browsing context.
func (c *Client) SwitchToDefault(ctx context.Context) error {
	_, err := c.post(ctx, c.sessionPath()+"/frame", map[string]interface{}{
		"id": nil,
	})
	return err
}

// Cookies

// GetCookies returns every cookie visible to the current document.
func (c *Client) GetCookies(ctx context.Context) ([]core.Cookie, error) {
	resp, err := c.get(ctx, c.sessionPath()+"/cookie")
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(resp["value"])
	if err != nil {
		return nil, err
	}
	var cookies []core.Cookie
	if err := json.Unmarshal(raw, &cookies); err != nil {
		return nil, fmt.Errorf("invalid cookie response: %w", err)
	}
	return cookies, nil
}

// AddCookie adds a cookie to the current document.
func (c *Client) AddCookie(ctx context.Context, cookie core.Cookie) error {
	_, err := c.post(ctx, c.sessionPath()+"/cookie", map[string]interface{}{
		"cookie": cookie,
	})
	return err
}

// HTTP Helpers

func (c *Client) sessionPath() string {
	return "/session/" + c.sessionID
}

func (c *Client) elementPath(elementID string) string {
	return c.sessionPath() + "/element/" + elementID
}

func (c *Client) get(ctx context.Context, path string) (map[string]interface{}, error) {
	return c.request(ctx, "GET", path, nil)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (map[string]interface{}, error) {
	return c.request(ctx, "POST", path, body)
}

func (c *Client) delete(ctx context.Context, path string) (map[string]interface{}, error) {
	return c.request(ctx, "DELETE", path, nil)
}

func (c *Client) request(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	url := c.serverURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &ProtocolError{
				StatusCode: resp.StatusCode,
				Code:       "unknown error",
				Message:    strings.TrimSpace(string(respBody)),
			}
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// Check for WebDriver error
	if errValue, ok := result["value"].(map[string]interface{}); ok {
		if errType, ok := errValue["error"].(string); ok && errType != "" {
			msg, _ := errValue["message"].(string)
			return result, &ProtocolError{StatusCode: resp.StatusCode, Code: errType, Message: msg}
		}
	}
	if resp.StatusCode >= 400 {
		return result, &ProtocolError{StatusCode: resp.StatusCode, Code: "unknown error", Message: http.StatusText(resp.StatusCode)}
	}

	return result, nil
}

func decodeScreenshot(resp map[string]interface{}) ([]byte, error) {
	encoded, ok := resp["value"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid screenshot response")
	}
	return base64.StdEncoding.DecodeString(encoded)
}

func extractElementID(value map[string]interface{}) string {
	// W3C format
	if id, ok := value[w3cElementKey].(string); ok {
		return id
	}
	// Legacy format
	if id, ok := value["ELEMENT"].(string); ok {
		return id
	}
	return ""
}

// isCode reports whether err is a protocol error with one of codes.
func isCode(err error, codes ...string) bool {
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		return false
	}
	for _, code := range codes {
		if pe.Code == code {
			return true
		}
	}
	return false
}

// classify converts client errors into the session error taxonomy:
// missing elements and timeouts are element errors, every other protocol
// or transport failure is a session error.
func classify(err error, what string) error {
	if err == nil {
		return nil
	}
	var execErr *core.ExecutionError
	if errors.As(err, &execErr) {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case isCode(err, codeNoSuchElement, codeStaleElement, codeNoSuchFrame):
		return core.ErrElementNotFound.WithMessage(what).WithCause(err)
	case isCode(err, codeTimeout, codeScriptTimeout), errors.Is(err, context.DeadlineExceeded):
		return core.ErrWaitTimeout.WithMessage(what).WithCause(err)
	case isProtocol(err):
		return core.ErrSessionFailed.WithMessage(what).WithCause(err)
	default:
		return core.ErrServerUnreachable.WithMessage(what).WithCause(err)
	}
}

func isProtocol(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
