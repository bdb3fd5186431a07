package termgrid

// Theme carries the color strings the surrounding application hands to the
// renderer. All values are color strings in the forms ColorCache accepts;
// the 16 ANSI slots let the encoder resolve named palette references.
type Theme struct {
	Background          string
	Foreground          string
	Cursor              string
	CursorAccent        string
	SelectionBackground string

	// ANSI palette, dark then bright, in standard order.
	Black   string
	Red     string
	Green   string
	Yellow  string
	Blue    string
	Magenta string
	Cyan    string
	White   string

	BrightBlack   string
	BrightRed     string
	BrightGreen   string
	BrightYellow  string
	BrightBlue    string
	BrightMagenta string
	BrightCyan    string
	BrightWhite   string
}

// DefaultTheme returns a dark theme with the classic VS Code terminal
// palette, matching what the authority emits for indexed colors.
func DefaultTheme() Theme {
	return Theme{
		Background:          "#1e1e1e",
		Foreground:          "#cccccc",
		Cursor:              "#ffffff",
		CursorAccent:        "#1e1e1e",
		SelectionBackground: "#264f78",

		Black:   "#000000",
		Red:     "#cd3131",
		Green:   "#0dbc79",
		Yellow:  "#e5e510",
		Blue:    "#2472c8",
		Magenta: "#bc3fbc",
		Cyan:    "#11a8cd",
		White:   "#e5e5e5",

		BrightBlack:   "#666666",
		BrightRed:     "#f14c4c",
		BrightGreen:   "#23d18b",
		BrightYellow:  "#f5f543",
		BrightBlue:    "#3b8eea",
		BrightMagenta: "#d670d6",
		BrightCyan:    "#29b8db",
		BrightWhite:   "#e5e5e5",
	}
}

// AnsiColor resolves an ANSI palette name to its theme color string.
// Returns ("", false) for names outside the 16-color palette.
func (t *Theme) AnsiColor(name string) (string, bool) {
	switch name {
	case "black":
		return t.Black, true
	case "red":
		return t.Red, true
	case "green":
		return t.Green, true
	case "yellow":
		return t.Yellow, true
	case "blue":
		return t.Blue, true
	case "magenta":
		return t.Magenta, true
	case "cyan":
		return t.Cyan, true
	case "white":
		return t.White, true
	case "brightBlack":
		return t.BrightBlack, true
	case "brightRed":
		return t.BrightRed, true
	case "brightGreen":
		return t.BrightGreen, true
	case "brightYellow":
		return t.BrightYellow, true
	case "brightBlue":
		return t.BrightBlue, true
	case "brightMagenta":
		return t.BrightMagenta, true
	case "brightCyan":
		return t.BrightCyan, true
	case "brightWhite":
		return t.BrightWhite, true
	}
	return "", false
}
