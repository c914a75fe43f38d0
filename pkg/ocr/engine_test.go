package ocr

import (
	"context"
	"image"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTesseractDefaults(t *testing.T) {
	tess := NewTesseract("", "")
	assert.Equal(t, "tesseract", tess.Binary)
	assert.Equal(t, "eng", tess.Language)
}

func TestTesseractArgs(t *testing.T) {
	args := NewTesseract("", "deu").Args()
	assert.Equal(t, []string{"stdin", "stdout"}, args[:2])
	assert.Contains(t, args, "deu")
	assert.Contains(t, args, "--psm")
	assert.Contains(t, args, "tessedit_char_whitelist="+Whitelist)
}

func TestTesseractUnavailable(t *testing.T) {
	tess := NewTesseract(filepath.Join(t.TempDir(), "no-such-tesseract"), "")

	err := tess.Available()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = tess.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)))
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = tess.Version(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}
