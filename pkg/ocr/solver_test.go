package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/webcheck-runner/pkg/core"
	"github.com/devicelab-dev/webcheck-runner/pkg/driver/mock"
)

// fakeEngine returns queued answers in order, repeating the last one.
type fakeEngine struct {
	mu      sync.Mutex
	answers []string
	errs    []error
	calls   int
	missing bool
}

func (f *fakeEngine) Available() error {
	if f.missing {
		return fmt.Errorf("%w: tesseract not in PATH", ErrUnavailable)
	}
	return nil
}

func (f *fakeEngine) Recognize(_ context.Context, img image.Image) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if len(f.answers) == 0 {
		return "", nil
	}
	if i >= len(f.answers) {
		i = len(f.answers) - 1
	}
	return f.answers[i], nil
}

func (f *fakeEngine) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// captchaPage builds a login page whose submit button shows an error
// unless the captcha input holds accept.
func captchaPage(accept string) *mock.Launcher {
	src := "data:image/png;base64," + base64.StdEncoding.EncodeToString(mock.PNG)
	return mock.New(mock.Config{
		PageText: "Login",
		Elements: map[string]*mock.Element{
			"#captcha": {Attrs: map[string]string{"src": src}},
			"#code":    {},
			"#submit":  {},
		},
		OnClick: func(s *mock.Session, selector string) {
			if selector != "#submit" {
				return
			}
			if s.Typed("#code") == accept {
				s.SetPageText("Welcome back")
			} else {
				s.SetPageText("验证码错误, please retry")
			}
		},
	})
}

func openSession(t *testing.T, l *mock.Launcher) *mock.Session {
	t.Helper()
	sess, err := l.Open(context.Background(), core.SessionOptions{})
	require.NoError(t, err)
	return sess.(*mock.Session)
}

func newTestSolver(engine Engine) *Solver {
	s := NewSolver(engine, DefaultInvalidMatcher())
	s.SettleDelay = 0
	return s
}

func TestSolveFirstAttempt(t *testing.T) {
	sess := openSession(t, captchaPage("AB12"))
	engine := &fakeEngine{answers: []string{"A B-12\n"}}

	res, err := newTestSolver(engine).Solve(context.Background(), sess, SolveRequest{
		CaptchaSelector: "#captcha",
		InputSelector:   "#code",
		SubmitSelector:  "#submit",
		MaxAttempts:     3,
	})
	require.NoError(t, err)
	assert.True(t, res.Solved)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "AB12", res.Text)
	assert.Equal(t, "AB12", sess.Typed("#code"))
}

func TestSolveRetriesAfterRejection(t *testing.T) {
	sess := openSession(t, captchaPage("XY99"))
	engine := &fakeEngine{answers: []string{"XY98", "XY99"}}

	res, err := newTestSolver(engine).Solve(context.Background(), sess, SolveRequest{
		CaptchaSelector: "#captcha",
		InputSelector:   "#code",
		SubmitSelector:  "#submit",
		MaxAttempts:     3,
	})
	require.NoError(t, err)
	assert.True(t, res.Solved)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "XY99", sess.Typed("#code"), "input is cleared before each attempt")
	assert.Equal(t, []string{"#submit", "#submit"}, sess.Clicks())
}

func TestSolveExhausted(t *testing.T) {
	sess := openSession(t, captchaPage("never"))
	engine := &fakeEngine{answers: []string{"zzzz"}}

	res, err := newTestSolver(engine).Solve(context.Background(), sess, SolveRequest{
		CaptchaSelector: "#captcha",
		InputSelector:   "#code",
		SubmitSelector:  "#submit",
		MaxAttempts:     2,
	})
	require.NoError(t, err)
	assert.False(t, res.Solved)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 2, engine.Calls())
}

func TestSolveEmptyTextContinues(t *testing.T) {
	sess := openSession(t, captchaPage("K7"))
	engine := &fakeEngine{answers: []string{"--", "K7"}}

	res, err := newTestSolver(engine).Solve(context.Background(), sess, SolveRequest{
		CaptchaSelector: "#captcha",
		InputSelector:   "#code",
		SubmitSelector:  "#submit",
	})
	require.NoError(t, err)
	assert.True(t, res.Solved)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, []string{"#submit"}, sess.Clicks(), "no submit for an unreadable image")
}

func TestSolveAttemptErrorContinues(t *testing.T) {
	sess := openSession(t, captchaPage("OK1"))
	engine := &fakeEngine{
		answers: []string{"", "OK1"},
		errs:    []error{errors.New("tesseract crashed")},
	}

	res, err := newTestSolver(engine).Solve(context.Background(), sess, SolveRequest{
		CaptchaSelector: "#captcha",
		InputSelector:   "#code",
		SubmitSelector:  "#submit",
		MaxAttempts:     3,
	})
	require.NoError(t, err)
	assert.True(t, res.Solved)
	assert.Equal(t, 2, res.Attempts)
}

func TestSolveMissingInputIsRetried(t *testing.T) {
	sess := openSession(t, captchaPage("ABC"))
	engine := &fakeEngine{answers: []string{"ABC"}}

	res, err := newTestSolver(engine).Solve(context.Background(), sess, SolveRequest{
		CaptchaSelector: "#captcha",
		InputSelector:   "#nope",
		MaxAttempts:     2,
	})
	require.NoError(t, err)
	assert.False(t, res.Solved)
	assert.Equal(t, 2, res.Attempts)
}

func TestSolveWithoutSubmit(t *testing.T) {
	sess := openSession(t, captchaPage("ABC"))
	engine := &fakeEngine{answers: []string{"ABC"}}

	res, err := newTestSolver(engine).Solve(context.Background(), sess, SolveRequest{
		CaptchaSelector: "#captcha",
		InputSelector:   "#code",
	})
	require.NoError(t, err)
	assert.True(t, res.Solved, "page text never reports an invalid captcha")
	assert.Empty(t, sess.Clicks())
}

func TestSolveUnavailable(t *testing.T) {
	sess := openSession(t, captchaPage("ABC"))
	engine := &fakeEngine{missing: true}

	res, err := newTestSolver(engine).Solve(context.Background(), sess, SolveRequest{
		CaptchaSelector: "#captcha",
		InputSelector:   "#code",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, res.Solved)
	assert.Zero(t, engine.Calls())
}

func TestSolveCancelled(t *testing.T) {
	sess := openSession(t, captchaPage("ABC"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestSolver(&fakeEngine{answers: []string{"ABC"}}).Solve(ctx, sess, SolveRequest{
		CaptchaSelector: "#captcha",
		InputSelector:   "#code",
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecognizeScreenshotFallback(t *testing.T) {
	l := mock.New(mock.Config{
		Elements: map[string]*mock.Element{
			"//img[@id='c']": {Attrs: map[string]string{"src": "/captcha.png"}},
		},
	})
	sess := openSession(t, l)
	engine := &fakeEngine{answers: []string{" 4f g\n"}}

	text, err := newTestSolver(engine).Recognize(context.Background(), sess, "//img[@id='c']", ModeBinary)
	require.NoError(t, err)
	assert.Equal(t, "4fg", text)
}

func TestRecognizeMissingElement(t *testing.T) {
	sess := openSession(t, mock.New(mock.Config{}))

	_, err := newTestSolver(&fakeEngine{}).Recognize(context.Background(), sess, "#captcha", ModeDefault)
	require.Error(t, err)
	assert.Equal(t, core.ErrCategoryElement, core.CategoryOf(err))
}

func TestRecognizeBadDataURL(t *testing.T) {
	l := mock.New(mock.Config{
		Elements: map[string]*mock.Element{
			"#captcha": {Attrs: map[string]string{"src": "data:image/png;base64,@@@"}},
		},
	})
	sess := openSession(t, l)

	_, err := newTestSolver(&fakeEngine{}).Recognize(context.Background(), sess, "#captcha", ModeDefault)
	assert.ErrorContains(t, err, "malformed data URL")
}

func TestRecognizeImageUnavailable(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	_, err := newTestSolver(&fakeEngine{missing: true}).RecognizeImage(context.Background(), img, ModeDefault)
	assert.ErrorIs(t, err, ErrUnavailable)
}
