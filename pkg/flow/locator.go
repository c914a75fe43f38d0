package flow

import (
	"errors"
	"strings"
)

// ErrEmptySelector is returned by ResolveLocator for an empty selector.
var ErrEmptySelector = errors.New("empty selector is not allowed")

// LocatorStrategy is how a locator value is interpreted.
type LocatorStrategy string

// Locator strategies. The values are the W3C WebDriver "using" names.
const (
	StrategyCSS   LocatorStrategy = "css selector"
	StrategyXPath LocatorStrategy = "xpath"
)

// Locator identifies a page element.
type Locator struct {
	Strategy LocatorStrategy
	Value    string
}

// String renders the locator in the prefixed form accepted by ResolveLocator.
func (l Locator) String() string {
	if l.Strategy == StrategyXPath {
		return "xpath=" + l.Value
	}
	return "css=" + l.Value
}

// ResolveLocator classifies a selector string:
//   - "xpath=" prefix (any case) selects XPath with the remainder as value
//   - "css=" prefix (any case) selects CSS with the remainder as value
//   - "//" or ".//" selects XPath with the whole string as value
//   - anything else is a CSS selector
func ResolveLocator(selector string) (Locator, error) {
	sel := strings.TrimSpace(selector)
	if sel == "" {
		return Locator{}, ErrEmptySelector
	}

	switch {
	case hasPrefixFold(sel, "xpath="):
		return Locator{Strategy: StrategyXPath, Value: sel[len("xpath="):]}, nil
	case hasPrefixFold(sel, "css="):
		return Locator{Strategy: StrategyCSS, Value: sel[len("css="):]}, nil
	case strings.HasPrefix(sel, "//"), strings.HasPrefix(sel, ".//"):
		return Locator{Strategy: StrategyXPath, Value: sel}, nil
	default:
		return Locator{Strategy: StrategyCSS, Value: sel}, nil
	}
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
