package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the arcflow banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"   __ _ _ __ ___ / _| | _____      __", "#34d399"},
		{"  / _` | '__/ __| |_| |/ _ \\ \\ /\\ / /", "#2dd4bf"},
		{" | (_| | | | (__|  _| | (_) \\ V  V / ", "#22d3ee"},
		{"  \\__,_|_|  \\___|_| |_|\\___/ \\_/\\_/  ", "#38bdf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
