package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register webp for inline captcha images

	"github.com/devicelab-dev/webcheck-runner/pkg/core"
	"github.com/devicelab-dev/webcheck-runner/pkg/flow"
	"github.com/devicelab-dev/webcheck-runner/pkg/logger"
)

// Default timings of the solve loop.
const (
	DefaultElementTimeout = 10 * time.Second
	DefaultSettleDelay    = 2 * time.Second
	DefaultMaxAttempts    = 3
)

// Solver recognizes captchas on a live page.
type Solver struct {
	engine  Engine
	matcher InvalidMatcher

	// ElementTimeout bounds waits for the captcha image, input and submit button
	ElementTimeout time.Duration
	// SettleDelay is the pause between submitting and re-reading the page
	SettleDelay time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// NewSolver creates a solver around engine.
func NewSolver(engine Engine, matcher InvalidMatcher) *Solver {
	return &Solver{
		engine:         engine,
		matcher:        matcher,
		ElementTimeout: DefaultElementTimeout,
		SettleDelay:    DefaultSettleDelay,
		sleep:          sleepContext,
	}
}

// WithElementTimeout returns a copy of s that waits up to d for elements.
func (s *Solver) WithElementTimeout(d time.Duration) *Solver {
	c := *s
	c.ElementTimeout = d
	return &c
}

// Recognize extracts the captcha image located by selector, preprocesses
// it with mode and returns the alphanumeric text found. Engine
// unavailability is returned as an error wrapping ErrUnavailable.
func (s *Solver) Recognize(ctx context.Context, sess core.Session, selector string, mode Mode) (string, error) {
	if err := s.engine.Available(); err != nil {
		return "", err
	}

	img, err := s.extractImage(ctx, sess, selector)
	if err != nil {
		return "", err
	}
	return s.RecognizeImage(ctx, img, mode)
}

// RecognizeImage preprocesses img and runs the engine on it.
func (s *Solver) RecognizeImage(ctx context.Context, img image.Image, mode Mode) (string, error) {
	if err := s.engine.Available(); err != nil {
		return "", err
	}
	text, err := s.engine.Recognize(ctx, Preprocess(img, mode))
	if err != nil {
		return "", err
	}
	return FilterAlnum(text), nil
}

// extractImage reads an inline data: URL from the element's src, falling
// back to a screenshot of the element.
func (s *Solver) extractImage(ctx context.Context, sess core.Session, selector string) (image.Image, error) {
	loc, err := flow.ResolveLocator(selector)
	if err != nil {
		return nil, core.ErrInvalidConfig.WithMessage("invalid captcha selector").WithCause(err)
	}
	el, err := sess.Find(ctx, loc, core.ConditionPresent, s.ElementTimeout)
	if err != nil {
		return nil, err
	}

	var data []byte
	src, _ := el.Attribute(ctx, "src")
	if strings.HasPrefix(src, "data:image") {
		data, err = decodeDataURL(src)
	} else {
		data, err = el.Screenshot(ctx)
	}
	if err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode captcha image: %w", err)
	}
	return img, nil
}

func decodeDataURL(src string) ([]byte, error) {
	_, payload, ok := strings.Cut(src, ",")
	if !ok {
		return nil, errors.New("malformed data URL: no payload")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("malformed data URL: %w", err)
	}
	return data, nil
}

// SolveRequest describes one solve_captcha action.
type SolveRequest struct {
	CaptchaSelector string
	InputSelector   string
	SubmitSelector  string // optional
	MaxAttempts     int
	Mode            Mode
}

// SolveResult reports how a solve loop ended.
type SolveResult struct {
	Solved   bool
	Attempts int
	Text     string // the accepted captcha text
}

// Solve repeats recognize, type, optional submit, settle and check until
// the page no longer reports an invalid captcha or attempts run out.
// Errors inside one attempt are logged and the next attempt runs; only
// engine unavailability and context cancellation are returned.
func (s *Solver) Solve(ctx context.Context, sess core.Session, req SolveRequest) (SolveResult, error) {
	if err := s.engine.Available(); err != nil {
		return SolveResult{}, err
	}
	if req.MaxAttempts <= 0 {
		req.MaxAttempts = DefaultMaxAttempts
	}

	var result SolveResult
	for attempt := 1; attempt <= req.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Attempts = attempt

		text, err := s.attempt(ctx, sess, req)
		if errors.Is(err, ErrUnavailable) {
			return result, err
		}
		if err != nil {
			logger.Warn("captcha attempt %d/%d failed: %v", attempt, req.MaxAttempts, err)
			continue
		}
		if text == "" {
			continue
		}

		result.Solved = true
		result.Text = text
		logger.Info("captcha solved on attempt %d: %s", attempt, text)
		return result, nil
	}

	logger.Warn("captcha not solved after %d attempts", req.MaxAttempts)
	return result, nil
}

// attempt runs one solve iteration. It returns "" with a nil error when the
// image was unreadable or the page rejected the text.
func (s *Solver) attempt(ctx context.Context, sess core.Session, req SolveRequest) (string, error) {
	text, err := s.Recognize(ctx, sess, req.CaptchaSelector, req.Mode)
	if err != nil {
		return "", err
	}
	if text == "" {
		logger.Warn("captcha image produced no text")
		return "", nil
	}

	if err := s.typeInto(ctx, sess, req.InputSelector, text); err != nil {
		return "", err
	}
	if req.SubmitSelector != "" {
		if err := s.click(ctx, sess, req.SubmitSelector); err != nil {
			return "", err
		}
	}

	if err := s.sleep(ctx, s.SettleDelay); err != nil {
		return "", err
	}

	page, err := sess.PageText(ctx)
	if err != nil {
		return "", err
	}
	if s.matcher.Matches(page) {
		logger.Warn("captcha %q rejected by page", text)
		return "", nil
	}
	return text, nil
}

func (s *Solver) typeInto(ctx context.Context, sess core.Session, selector, text string) error {
	loc, err := flow.ResolveLocator(selector)
	if err != nil {
		return err
	}
	el, err := sess.Find(ctx, loc, core.ConditionVisible, s.ElementTimeout)
	if err != nil {
		return err
	}
	if err := el.Clear(ctx); err != nil {
		return err
	}
	return el.SendKeys(ctx, text)
}

func (s *Solver) click(ctx context.Context, sess core.Session, selector string) error {
	loc, err := flow.ResolveLocator(selector)
	if err != nil {
		return err
	}
	el, err := sess.Find(ctx, loc, core.ConditionClickable, s.ElementTimeout)
	if err != nil {
		return err
	}
	return el.Click(ctx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
