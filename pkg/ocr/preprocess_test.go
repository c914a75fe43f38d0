package ocr

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stripes returns a noisy two-tone image: dark text-like columns on a
// light background, with a few salt pixels.
func stripes() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 12, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 12; x++ {
			c := color.NRGBA{R: 220, G: 210, B: 200, A: 255}
			if x%4 == 0 {
				c = color.NRGBA{R: 30, G: 40, B: 60, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	img.SetNRGBA(2, 2, color.NRGBA{R: 0, G: 0, B: 0, A: 255})
	return img
}

func TestPreprocess_Pure(t *testing.T) {
	src := stripes()
	before := append([]uint8(nil), src.Pix...)

	for _, mode := range Modes {
		first := Preprocess(src, mode)
		second := Preprocess(src, mode)
		assert.Equal(t, first.Pix, second.Pix, "mode %s is not deterministic", mode)
		assert.Equal(t, src.Bounds().Size(), first.Bounds().Size())
	}
	assert.Equal(t, before, src.Pix, "input image was modified")
}

func TestPreprocess_Binary(t *testing.T) {
	out := Preprocess(stripes(), ModeBinary)
	for _, v := range out.Pix {
		require.True(t, v == 0 || v == 255, "binary pixel %d", v)
	}
	assert.Equal(t, uint8(0), out.GrayAt(0, 0).Y, "dark column should be black")
	assert.Equal(t, uint8(255), out.GrayAt(1, 0).Y, "background should be white")
}

func TestPreprocess_DenoiseRemovesSaltPixel(t *testing.T) {
	gray := Preprocess(stripes(), ModeGrayscale)
	denoised := Preprocess(stripes(), ModeDenoise)

	assert.Less(t, gray.GrayAt(2, 2).Y, uint8(10))
	assert.Greater(t, denoised.GrayAt(2, 2).Y, uint8(150))
}

func TestPreprocess_UnknownModeIsDefault(t *testing.T) {
	src := stripes()
	assert.Equal(t, Preprocess(src, ModeDefault).Pix, Preprocess(src, Mode("sharpen")).Pix)
	assert.Equal(t, Preprocess(src, ModeDefault).Pix, Preprocess(src, ModeGrayscale).Pix)
}

func TestOtsuThreshold_Uniform(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 3, 3))
	for i := range gray.Pix {
		gray.Pix[i] = 128
	}
	assert.Equal(t, uint8(0), otsuThreshold(gray))
}

func TestFilterAlnum(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"aB3x\n", "aB3x"},
		{" 7 k-Q_!", "7kQ"},
		{"验证码12ab", "12ab"},
		{"ＡＢ12", "12"},
		{"\t\f\r", ""},
		{"Zz09", "Zz09"},
	}
	for _, tt := range tests {
		got := FilterAlnum(tt.in)
		assert.Equal(t, tt.want, got, "FilterAlnum(%q)", tt.in)
		for _, r := range got {
			assert.True(t, (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
		}
	}
}
