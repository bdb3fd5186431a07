package termgrid

import "testing"

func TestThemeAnsiColor(t *testing.T) {
	theme := DefaultTheme()

	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"red", "#cd3131", true},
		{"brightBlue", "#3b8eea", true},
		{"black", "#000000", true},
		{"brightWhite", "#e5e5e5", true},
		{"orange", "", false},
		{"", "", false},
		{"Red", "", false},
	}
	for _, tt := range tests {
		got, ok := theme.AnsiColor(tt.name)
		if got != tt.want || ok != tt.ok {
			t.Errorf("AnsiColor(%q) = (%q, %v), want (%q, %v)", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDefaultThemeComplete(t *testing.T) {
	theme := DefaultTheme()
	for _, name := range []string{
		"black", "red", "green", "yellow", "blue", "magenta", "cyan", "white",
		"brightBlack", "brightRed", "brightGreen", "brightYellow",
		"brightBlue", "brightMagenta", "brightCyan", "brightWhite",
	} {
		c, ok := theme.AnsiColor(name)
		if !ok || c == "" {
			t.Errorf("palette slot %q is empty", name)
		}
	}
	if theme.Background == "" || theme.Foreground == "" || theme.SelectionBackground == "" {
		t.Error("default theme missing base colors")
	}
}
