package ocr

import (
	"fmt"
	"regexp"
	"strings"
)

// InvalidMatcher decides whether the page shown after a captcha attempt
// reports the captcha as wrong. Phrase matching is case-insensitive.
type InvalidMatcher struct {
	All     []string       // every phrase must appear
	Any     []string       // at least one phrase must appear, when non-empty
	Pattern *regexp.Regexp // when set, replaces All/Any
}

// DefaultInvalidMatcher matches pages that mention the captcha ("验证码")
// together with an error word ("错误" or "invalid").
func DefaultInvalidMatcher() InvalidMatcher {
	return InvalidMatcher{
		All: []string{"验证码"},
		Any: []string{"错误", "invalid"},
	}
}

// NewInvalidMatcher builds a matcher from configuration. A non-empty
// pattern takes precedence over the phrase lists; with neither, the
// default matcher is returned.
func NewInvalidMatcher(all, anyOf []string, pattern string) (InvalidMatcher, error) {
	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return InvalidMatcher{}, fmt.Errorf("invalid captcha pattern: %w", err)
		}
		return InvalidMatcher{Pattern: re}, nil
	}
	if len(all) == 0 && len(anyOf) == 0 {
		return DefaultInvalidMatcher(), nil
	}
	return InvalidMatcher{All: all, Any: anyOf}, nil
}

// Matches reports whether pageText signals a rejected captcha.
func (m InvalidMatcher) Matches(pageText string) bool {
	if m.Pattern != nil {
		return m.Pattern.MatchString(pageText)
	}
	if len(m.All) == 0 && len(m.Any) == 0 {
		return false
	}

	lower := strings.ToLower(pageText)
	for _, phrase := range m.All {
		if !strings.Contains(lower, strings.ToLower(phrase)) {
			return false
		}
	}
	if len(m.Any) == 0 {
		return true
	}
	for _, phrase := range m.Any {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

// ExhaustionPolicy says what solve_captcha does after its last failed attempt.
type ExhaustionPolicy string

const (
	// PolicyContinue logs the failure and lets the flow go on.
	PolicyContinue ExhaustionPolicy = "continue"
	// PolicyFail ends the flow with an assertion-style failure.
	PolicyFail ExhaustionPolicy = "fail"
)

// ParsePolicy parses a policy name. Empty means PolicyContinue.
func ParsePolicy(s string) (ExhaustionPolicy, error) {
	switch ExhaustionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyContinue:
		return PolicyContinue, nil
	case PolicyFail:
		return PolicyFail, nil
	default:
		return "", fmt.Errorf("unknown captcha exhaustion policy %q (want continue or fail)", s)
	}
}
