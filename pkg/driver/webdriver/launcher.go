package webdriver

import (
	"context"
	"time"

	"github.com/devicelab-dev/webcheck-runner/pkg/core"
	"github.com/devicelab-dev/webcheck-runner/pkg/logger"
)

// DefaultPageLoadTimeout bounds navigation when SessionOptions leaves it unset.
const DefaultPageLoadTimeout = 60 * time.Second

// Launcher opens Chrome sessions through chromedriver. With RemoteURL set
// it connects to that server instead of starting chromedriver.
type Launcher struct {
	RemoteURL string
}

// NewLauncher creates a launcher. remoteURL may be empty.
func NewLauncher(remoteURL string) *Launcher {
	return &Launcher{RemoteURL: remoteURL}
}

// Open starts (or connects to) a driver and creates a browser session.
func (l *Launcher) Open(ctx context.Context, opts core.SessionOptions) (core.Session, error) {
	var service *Service
	serverURL := l.RemoteURL
	if serverURL == "" {
		binary, err := ResolveDriver(opts.DriverPath)
		if err != nil {
			return nil, core.ErrSessionFailed.WithMessage("chromedriver unavailable").WithCause(err)
		}
		if service, err = StartService(ctx, binary); err != nil {
			return nil, err
		}
		serverURL = service.URL()
	}

	client := NewClient(serverURL)
	if err := client.Connect(ctx, Capabilities(opts)); err != nil {
		if service != nil {
			service.Stop()
		}
		return nil, classify(err, "create browser session")
	}
	logger.Info("webdriver session %s created on %s (headless=%v)", client.SessionID(), serverURL, opts.Headless)

	pageLoad := opts.PageLoadTimeout
	if pageLoad <= 0 {
		pageLoad = DefaultPageLoadTimeout
	}
	if err := client.SetPageLoadTimeout(ctx, pageLoad); err != nil {
		logger.Warn("failed to set page load timeout: %v", err)
	}

	return NewSession(client, service), nil
}

// Capabilities returns the Chrome capabilities for opts.
func Capabilities(opts core.SessionOptions) map[string]interface{} {
	args := []string{
		"--no-sandbox",
		"--disable-dev-shm-usage",
		"--disable-gpu",
		"--window-size=1920,1080",
	}
	if opts.Headless {
		args = append([]string{"--headless=new"}, args...)
	}
	return map[string]interface{}{
		"browserName":      "chrome",
		"pageLoadStrategy": "normal",
		"goog:chromeOptions": map[string]interface{}{
			"args": args,
		},
	}
}
