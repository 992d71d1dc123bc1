package ui

import (
	"strings"
	"testing"
)

func TestColors(t *testing.T) {
	c := NewColors(true)
	if got := c.Red("test"); got != ColorRed+"test"+ColorReset {
		t.Errorf("Red() = %q", got)
	}
	if got := c.Cyan("test"); !strings.HasPrefix(got, ColorCyan) {
		t.Errorf("Cyan() = %q", got)
	}

	plain := NewColors(false)
	for name, fn := range map[string]func(string) string{
		"red": plain.Red, "green": plain.Green, "yellow": plain.Yellow, "blue": plain.Blue,
		"cyan": plain.Cyan, "gray": plain.Gray, "bold": plain.Bold,
	} {
		if got := fn("test"); got != "test" {
			t.Errorf("%s with colors disabled = %q, want plain text", name, got)
		}
	}
}

func TestStatusSymbol(t *testing.T) {
	c := NewColors(false)

	tests := map[string]string{
		StatusPass:  "✓",
		StatusFail:  "✗",
		StatusError: "!",
		StatusSkip:  "⊘",
		"UNKNOWN":   " ",
	}
	for status, want := range tests {
		t.Run(status, func(t *testing.T) {
			if got := c.StatusSymbol(status); got != want {
				t.Errorf("StatusSymbol(%s) = %q, want %q", status, got, want)
			}
		})
	}
}

func TestStatusColor(t *testing.T) {
	c := NewColors(true)
	if got := c.StatusColor(StatusError, "x"); got != ColorRed+"x"+ColorReset {
		t.Errorf("StatusColor(ERROR) = %q", got)
	}
	if got := c.StatusColor("OTHER", "x"); got != "x" {
		t.Errorf("StatusColor(OTHER) = %q", got)
	}
}
