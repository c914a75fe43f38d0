// Package ocr recognizes simple text captchas: it extracts the captcha
// image from the page, preprocesses it and hands it to an OCR engine.
package ocr

import (
	"image"
	"image/color"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
)

// Mode selects the preprocessing applied before recognition.
type Mode string

// Preprocessing modes.
const (
	ModeDefault   Mode = "default"   // grayscale
	ModeGrayscale Mode = "grayscale" // grayscale
	ModeBinary    Mode = "binary"    // grayscale + Otsu threshold
	ModeDenoise   Mode = "denoise"   // grayscale + 3x3 median filter
)

// Modes lists the supported preprocessing modes.
var Modes = []Mode{ModeDefault, ModeGrayscale, ModeBinary, ModeDenoise}

// Preprocess returns a new grayscale image derived from img. The input is
// never modified and the output depends only on (img, mode). Unknown modes
// behave like ModeDefault.
func Preprocess(img image.Image, mode Mode) *image.Gray {
	gray := toGray(img)
	switch mode {
	case ModeBinary:
		return threshold(gray, otsuThreshold(gray))
	case ModeDenoise:
		return medianFilter(gray)
	default:
		return gray
	}
}

func toGray(img image.Image) *image.Gray {
	nrgba := imaging.Grayscale(img)
	b := nrgba.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			// imaging.Grayscale leaves R == G == B
			gray.SetGray(x, y, color.Gray{Y: nrgba.Pix[y*nrgba.Stride+x*4]})
		}
	}
	return gray
}

// otsuThreshold picks the threshold that maximizes between-class variance.
func otsuThreshold(gray *image.Gray) uint8 {
	var hist [256]int
	for _, v := range gray.Pix {
		hist[v]++
	}
	total := len(gray.Pix)
	if total == 0 {
		return 0
	}

	var sum float64
	for i, n := range hist {
		sum += float64(i * n)
	}

	var (
		sumB     float64
		weightB  int
		best     float64
		bestT    int
		varFound bool
	)
	for t := 0; t < 256; t++ {
		weightB += hist[t]
		if weightB == 0 {
			continue
		}
		weightF := total - weightB
		if weightF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		meanB := sumB / float64(weightB)
		meanF := (sum - sumB) / float64(weightF)
		between := float64(weightB) * float64(weightF) * (meanB - meanF) * (meanB - meanF)
		if !varFound || between > best {
			best = between
			bestT = t
			varFound = true
		}
	}
	return uint8(bestT)
}

// threshold maps pixels above t to white and the rest to black.
func threshold(gray *image.Gray, t uint8) *image.Gray {
	out := image.NewGray(gray.Rect)
	for i, v := range gray.Pix {
		if v > t {
			out.Pix[i] = 255
		}
	}
	return out
}

// medianFilter replaces each pixel by the median of its 3x3 neighbourhood,
// clamping at the edges.
func medianFilter(gray *image.Gray) *image.Gray {
	b := gray.Rect
	out := image.NewGray(b)
	window := make([]uint8, 0, 9)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			window = window[:0]
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					px := clamp(x+dx, b.Min.X, b.Max.X-1)
					py := clamp(y+dy, b.Min.Y, b.Max.Y-1)
					window = append(window, gray.GrayAt(px, py).Y)
				}
			}
			sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })
			out.SetGray(x, y, color.Gray{Y: window[len(window)/2]})
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FilterAlnum keeps only ASCII letters and digits.
func FilterAlnum(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
