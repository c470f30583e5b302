package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text, color string
}{
	{"   ___                            ", "#34d399"},
	{"  / __\\__ _ _ __   ___  _ __  _   _ ", "#10b981"},
	{" / /  / _` | '_ \\ / _ \\| '_ \\| | | |", "#059669"},
	{"/ /__| (_| | | | | (_) | |_) | |_| |", "#047857"},
	{"\\____/\\__,_|_| |_|\\___/| .__/ \\__, |", "#065f46"},
	{"                       |_|    |___/ ", "#064e3b"},
}

// PrintBanner writes the Canopy ASCII banner to w in a green gradient.
func PrintBanner(w io.Writer) {
	p := termenv.EnvColorProfile()
	fmt.Fprintln(w)
	for _, line := range bannerLines {
		fmt.Fprintln(w, p.String(line.text).Foreground(p.Color(line.color)))
	}
	fmt.Fprintln(w)
}
