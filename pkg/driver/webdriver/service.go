package webdriver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/devicelab-dev/webcheck-runner/pkg/config"
	"github.com/devicelab-dev/webcheck-runner/pkg/core"
	"github.com/devicelab-dev/webcheck-runner/pkg/logger"
)

const (
	startupTimeout = 20 * time.Second
	statusInterval = 250 * time.Millisecond
)

// Service runs a local chromedriver process.
type Service struct {
	binary string
	port   int
	cmd    *exec.Cmd
	output *syncBuffer

	exited chan struct{}
	once   sync.Once
}

// ResolveDriver finds the chromedriver executable: an explicit path,
// chromedriver on PATH, or <home>/drivers/chrome/chromedriver. A missing
// explicit path is logged and the search continues.
func ResolveDriver(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		logger.Warn("chromedriver not found at %s, falling back to PATH", explicit)
	}

	name := "chromedriver"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	bundled := filepath.Join(config.GetDriversDir("chrome"), name)
	if _, err := os.Stat(bundled); err == nil {
		return bundled, nil
	}
	return "", fmt.Errorf("chromedriver not found in PATH or %s; set --driver-path or CHROMEDRIVER", filepath.Dir(bundled))
}

// StartService launches chromedriver on a free local port and waits until
// it reports ready.
func StartService(ctx context.Context, binary string) (*Service, error) {
	port, err := freePort()
	if err != nil {
		return nil, core.ErrSessionFailed.WithMessage("no free port for chromedriver").WithCause(err)
	}

	s := &Service{
		binary: binary,
		port:   port,
		output: &syncBuffer{},
		exited: make(chan struct{}),
	}

	s.cmd = exec.Command(binary, "--port="+strconv.Itoa(port))
	out := io.MultiWriter(s.output, logger.GetWriter())
	s.cmd.Stdout = out
	s.cmd.Stderr = out

	logger.Info("starting chromedriver %s on port %d", binary, port)
	if err := s.cmd.Start(); err != nil {
		return nil, core.ErrSessionFailed.WithMessage("failed to start chromedriver").WithCause(err)
	}
	go func() {
		_ = s.cmd.Wait()
		close(s.exited)
	}()

	if err := s.waitForStartup(ctx); err != nil {
		s.Stop()
		return nil, err
	}
	return s, nil
}

// URL returns the service's WebDriver endpoint.
func (s *Service) URL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", s.port)
}

// Stop kills chromedriver. Safe to call more than once.
func (s *Service) Stop() {
	s.once.Do(func() {
		if s.cmd != nil && s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
			<-s.exited
		}
		logger.Debug("chromedriver on port %d stopped", s.port)
	})
}

func (s *Service) waitForStartup(ctx context.Context) error {
	client := NewClient(s.URL())
	timeout := time.After(startupTimeout)
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.exited:
			return core.ErrSessionFailed.WithMessage(
				fmt.Sprintf("chromedriver exited during startup:\n%s", tail(s.output.String(), 20)))
		case <-timeout:
			return core.ErrServerUnreachable.WithMessage(
				fmt.Sprintf("chromedriver startup timeout (%s):\n%s", startupTimeout, tail(s.output.String(), 20)))
		case <-ticker.C:
			statusCtx, cancel := context.WithTimeout(ctx, statusInterval*4)
			ready, err := client.Status(statusCtx)
			cancel()
			if err == nil && ready {
				return nil
			}
		}
	}
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func tail(content string, lines int) string {
	allLines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	if len(allLines) <= lines {
		return content
	}
	return strings.Join(allLines[len(allLines)-lines:], "\n")
}

// syncBuffer collects process output written from exec's copy goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
