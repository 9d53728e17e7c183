package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the operad banner and version to w, coloured for the
// terminal's profile. Plain text is written when w is not a colour terminal.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text  string
		color string
	}{
		{"   ___  _ __   ___ _ __ __ _  __| |", "#818cf8"},
		{"  / _ \\| '_ \\ / _ \\ '__/ _` |/ _` |", "#a78bfa"},
		{" | (_) | |_) |  __/ | | (_| | (_| |", "#c084fc"},
		{"  \\___/| .__/ \\___|_|  \\__,_|\\__,_|", "#e879f9"},
		{"       |_|", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	if version != "" {
		fmt.Fprintln(w, out.String("  v"+version).Faint())
	}
	fmt.Fprintln(w)
}

// Status colours a run status for terminal output.
func Status(w io.Writer, status string) string {
	out := termenv.NewOutput(w)
	color := "#fbc02d"
	switch status {
	case "completed", "valid":
		color = "#22c55e"
	case "failed", "cancelled", "invalid":
		color = "#ef4444"
	}
	return out.String(status).Foreground(out.Color(color)).Bold().String()
}
