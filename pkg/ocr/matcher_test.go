package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultInvalidMatcher(t *testing.T) {
	m := DefaultInvalidMatcher()

	assert.True(t, m.Matches("验证码错误"))
	assert.True(t, m.Matches("验证码 INVALID, try again"))
	assert.False(t, m.Matches("验证码"), "captcha word alone is not a rejection")
	assert.False(t, m.Matches("invalid password"))
	assert.False(t, m.Matches(""))
}

func TestNewInvalidMatcher(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		m, err := NewInvalidMatcher(nil, nil, "")
		require.NoError(t, err)
		assert.Equal(t, DefaultInvalidMatcher(), m)
	})

	t.Run("phrases", func(t *testing.T) {
		m, err := NewInvalidMatcher([]string{"Captcha"}, []string{"wrong", "expired"}, "")
		require.NoError(t, err)
		assert.True(t, m.Matches("captcha EXPIRED"))
		assert.False(t, m.Matches("captcha ok"))
	})

	t.Run("any only", func(t *testing.T) {
		m, err := NewInvalidMatcher(nil, []string{"retry"}, "")
		require.NoError(t, err)
		assert.True(t, m.Matches("Please RETRY"))
	})

	t.Run("all only", func(t *testing.T) {
		m, err := NewInvalidMatcher([]string{"code", "bad"}, nil, "")
		require.NoError(t, err)
		assert.True(t, m.Matches("bad code"))
		assert.False(t, m.Matches("bad"))
	})

	t.Run("pattern wins", func(t *testing.T) {
		m, err := NewInvalidMatcher([]string{"never"}, nil, `(?i)code\s+mismatch`)
		require.NoError(t, err)
		assert.True(t, m.Matches("Code   MISMATCH"))
		assert.False(t, m.Matches("never"))
	})

	t.Run("bad pattern", func(t *testing.T) {
		_, err := NewInvalidMatcher(nil, nil, "(")
		assert.ErrorContains(t, err, "invalid captcha pattern")
	})
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]ExhaustionPolicy{
		"":         PolicyContinue,
		"continue": PolicyContinue,
		" FAIL ":   PolicyFail,
		"fail":     PolicyFail,
	} {
		got, err := ParsePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParsePolicy("abort")
	assert.Error(t, err)
}
