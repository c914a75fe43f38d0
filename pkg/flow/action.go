package flow

// ActionKind identifies what an action does.
type ActionKind string

// Action kind constants.
const (
	// Navigation & Interaction
	ActionGoto          ActionKind = "goto"
	ActionType          ActionKind = "type"
	ActionClick         ActionKind = "click"
	ActionWaitPresence  ActionKind = "wait_presence"
	ActionWaitVisible   ActionKind = "wait_visible"
	ActionWaitClickable ActionKind = "wait_clickable"
	ActionSleep         ActionKind = "sleep"

	// Assertions
	ActionAssertPageContains       ActionKind = "assert_page_contains"
	ActionAssertPageNotContains    ActionKind = "assert_page_not_contains"
	ActionAssertElementContains    ActionKind = "assert_element_contains"
	ActionAssertElementNotContains ActionKind = "assert_element_not_contains"
	ActionCheckErrorKeyword        ActionKind = "check_error_keyword"
	ActionAssertScript             ActionKind = "assert_script"

	// Artifacts
	ActionScreenshot ActionKind = "screenshot"
	ActionSaveSource ActionKind = "save_source"

	// Variables & user input
	ActionSetVar    ActionKind = "set_var"
	ActionWaitUser  ActionKind = "wait_user"
	ActionPrompt    ActionKind = "prompt"
	ActionRunScript ActionKind = "run_script"

	// Captcha
	ActionOCRCaptcha   ActionKind = "ocr_captcha"
	ActionSolveCaptcha ActionKind = "solve_captcha"

	// Frames
	ActionSwitchToFrame          ActionKind = "switch_to_frame"
	ActionSwitchToDefaultContent ActionKind = "switch_to_default_content"

	// Cookies
	ActionSaveCookies ActionKind = "save_cookies"
	ActionLoadCookies ActionKind = "load_cookies"
)

// Kinds lists every supported action kind.
var Kinds = []ActionKind{
	ActionGoto, ActionType, ActionClick, ActionWaitPresence, ActionWaitVisible, ActionWaitClickable, ActionSleep,
	ActionAssertPageContains, ActionAssertPageNotContains, ActionAssertElementContains, ActionAssertElementNotContains,
	ActionCheckErrorKeyword, ActionAssertScript,
	ActionScreenshot, ActionSaveSource,
	ActionSetVar, ActionWaitUser, ActionPrompt, ActionRunScript,
	ActionOCRCaptcha, ActionSolveCaptcha,
	ActionSwitchToFrame, ActionSwitchToDefaultContent,
	ActionSaveCookies, ActionLoadCookies,
}

// IsKnown reports whether k is a supported action kind.
func (k ActionKind) IsKnown() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Action is one declarative step. Which fields matter depends on Kind.
type Action struct {
	Kind ActionKind `json:"action" yaml:"action"`

	// Interpolated before the action runs
	Selector string `json:"selector,omitempty" yaml:"selector,omitempty"`
	URL      string `json:"url,omitempty" yaml:"url,omitempty"`
	Text     string `json:"text,omitempty" yaml:"text,omitempty"`
	Value    string `json:"value,omitempty" yaml:"value,omitempty"`
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`

	Name          string   `json:"name,omitempty" yaml:"name,omitempty"`
	Timeout       *int     `json:"timeout,omitempty" yaml:"timeout,omitempty"` // seconds
	Seconds       *float64 `json:"seconds,omitempty" yaml:"seconds,omitempty"`
	Preprocessing string   `json:"preprocessing,omitempty" yaml:"preprocessing,omitempty"`

	// solve_captcha
	CaptchaSelector string `json:"captcha_selector,omitempty" yaml:"captcha_selector,omitempty"`
	InputSelector   string `json:"input_selector,omitempty" yaml:"input_selector,omitempty"`
	SubmitSelector  string `json:"submit_selector,omitempty" yaml:"submit_selector,omitempty"`
	MaxAttempts     *int   `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
	OnExhausted     string `json:"on_exhausted,omitempty" yaml:"on_exhausted,omitempty"` // continue | fail

	// run_script / assert_script
	Script string `json:"script,omitempty" yaml:"script,omitempty"`

	Index int `json:"-" yaml:"-"` // 1-based position in the flow
}

// Needle returns the text an assertion looks for: text, else value.
func (a Action) Needle() string {
	if a.Text != "" {
		return a.Text
	}
	return a.Value
}

// Describe returns a short human-readable summary for progress output.
func (a Action) Describe() string {
	switch {
	case a.Selector != "":
		return string(a.Kind) + " " + a.Selector
	case a.URL != "":
		return string(a.Kind) + " " + a.URL
	case a.Path != "":
		return string(a.Kind) + " " + a.Path
	case a.CaptchaSelector != "":
		return string(a.Kind) + " " + a.CaptchaSelector
	case a.Name != "":
		return string(a.Kind) + " " + a.Name
	case a.Needle() != "":
		return string(a.Kind) + " " + a.Needle()
	default:
		return string(a.Kind)
	}
}
