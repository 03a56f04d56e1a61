package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the wizard banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{` __      __ _                   _ `, "#818cf8"},
		{` \ \    / /(_) ___ __ _  _ _ __| |`, "#a78bfa"},
		{`  \ \/\/ / | ||_ // _' || '_/ _' |`, "#c084fc"},
		{`   \_/\_/  |_|/__|\__,_||_| \__,_|`, "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// StateLabel colours a state path for prompts.
func StateLabel(path string) string {
	p := termenv.ColorProfile()
	return termenv.String(path).Foreground(p.Color("#fbbf24")).Bold().String()
}
