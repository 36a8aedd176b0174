package output

import (
	"testing"
)

func TestColorSchemes(t *testing.T) {
	for name, scheme := range map[string]*ColorScheme{
		"default":  DefaultColorScheme(),
		"no color": NoColorScheme(),
	} {
		for i, c := range scheme.all() {
			if c == nil {
				t.Errorf("%s scheme color %d should not be nil", name, i)
			}
		}
	}

	plain := NoColorScheme()
	if got := plain.Good.Sprint("ok"); got != "ok" {
		t.Errorf("NoColorScheme should print plain text, got %q", got)
	}
}

func TestRateColor(t *testing.T) {
	s := NoColorScheme()
	if s.rateColor(0) != s.Good {
		t.Error("zero failure rate should be good")
	}
	if s.rateColor(0.02) != s.Warn {
		t.Error("2% failure rate should warn")
	}
	if s.rateColor(0.5) != s.Bad {
		t.Error("50% failure rate should be bad")
	}
}

func TestIcons(t *testing.T) {
	if SuccessIcon(true) != "✓" {
		t.Errorf("SuccessIcon(true) = %q", SuccessIcon(true))
	}
	if ErrorIcon(true) != "✗" {
		t.Errorf("ErrorIcon(true) = %q", ErrorIcon(true))
	}
	if WarningIcon(true) != "⚠" {
		t.Errorf("WarningIcon(true) = %q", WarningIcon(true))
	}
}
