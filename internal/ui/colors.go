package ui

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[94m" // Bright blue - more readable on dark backgrounds
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[90m"
	ColorBold   = "\033[1m"
)

// Test status names shown in console output
const (
	StatusPass  = "PASS"
	StatusFail  = "FAIL"
	StatusError = "ERROR"
	StatusSkip  = "SKIP"
)

// Colors holds all color functions
type Colors struct {
	enabled bool
}

// NewColors creates a new Colors instance
func NewColors(enabled bool) *Colors {
	return &Colors{enabled: enabled}
}

// Enabled reports whether escape codes are emitted
func (c *Colors) Enabled() bool {
	return c.enabled
}

func (c *Colors) wrap(code, s string) string {
	if !c.enabled {
		return s
	}
	return code + s + ColorReset
}

// Red returns red colored text
func (c *Colors) Red(s string) string { return c.wrap(ColorRed, s) }

// Green returns green colored text
func (c *Colors) Green(s string) string { return c.wrap(ColorGreen, s) }

// Yellow returns yellow colored text
func (c *Colors) Yellow(s string) string { return c.wrap(ColorYellow, s) }

// Blue returns blue colored text
func (c *Colors) Blue(s string) string { return c.wrap(ColorBlue, s) }

// Cyan returns cyan colored text
func (c *Colors) Cyan(s string) string { return c.wrap(ColorCyan, s) }

// Gray returns gray colored text
func (c *Colors) Gray(s string) string { return c.wrap(ColorGray, s) }

// Bold returns bold text
func (c *Colors) Bold(s string) string { return c.wrap(ColorBold, s) }

// StatusColor returns colored text based on status
func (c *Colors) StatusColor(status string, text string) string {
	switch status {
	case StatusPass:
		return c.Green(text)
	case StatusFail, StatusError:
		return c.Red(text)
	case StatusSkip:
		return c.Yellow(text)
	default:
		return text
	}
}

// StatusSymbol returns a colored symbol for the status
func (c *Colors) StatusSymbol(status string) string {
	switch status {
	case StatusPass:
		return c.Green("✓")
	case StatusFail:
		return c.Red("✗")
	case StatusError:
		return c.Red("!")
	case StatusSkip:
		return c.Yellow("⊘")
	default:
		return " "
	}
}
