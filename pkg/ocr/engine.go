package ocr

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os/exec"
	"strings"

	"github.com/disintegration/imaging"
)

// ErrUnavailable means no OCR engine can be used on this machine. It is
// returned at first use instead of silently recognizing nothing.
var ErrUnavailable = errors.New("OCR engine not available")

// Engine recognizes text in an image.
type Engine interface {
	// Available returns an error wrapping ErrUnavailable when the engine
	// cannot run.
	Available() error

	// Recognize returns the raw text found in img.
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// Whitelist restricts recognition to captcha characters.
const Whitelist = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Tesseract runs the tesseract command line tool. The image is piped on
// stdin as PNG and the text is read from stdout.
type Tesseract struct {
	Binary   string // Defaults to "tesseract" on PATH
	Language string // Defaults to "eng"
}

// NewTesseract creates a tesseract engine. An empty binary means the one on PATH.
func NewTesseract(binary, language string) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	return &Tesseract{Binary: binary, Language: language}
}

// Available checks that the tesseract binary can be resolved.
func (t *Tesseract) Available() error {
	if _, err := exec.LookPath(t.Binary); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, t.Binary, err)
	}
	return nil
}

// Version returns the first line of `tesseract --version`.
func (t *Tesseract) Version(ctx context.Context) (string, error) {
	if err := t.Available(); err != nil {
		return "", err
	}
	out, err := exec.CommandContext(ctx, t.Binary, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("tesseract --version: %w", err)
	}
	line, _, _ := bufio.NewReader(bytes.NewReader(out)).ReadLine()
	return strings.TrimSpace(string(line)), nil
}

// Args returns the command line used to recognize one image.
func (t *Tesseract) Args() []string {
	return []string{
		"stdin", "stdout",
		"-l", t.Language,
		"--oem", "3",
		"--psm", "8",
		"-c", "tessedit_char_whitelist=" + Whitelist,
	}
}

// Recognize runs tesseract on img.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := t.Available(); err != nil {
		return "", err
	}

	var input bytes.Buffer
	if err := imaging.Encode(&input, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.Binary, t.Args()...)
	cmd.Stdin = &input
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
