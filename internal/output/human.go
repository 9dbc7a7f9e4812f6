package output

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/ALT-F4-LLC/rewind/internal/render"
)

// notice is the prefix style of a diagnostic line.
type notice struct {
	icon  string
	label string
	color lipgloss.Color
	bold  bool
	dim   bool
}

var (
	noticeSuccess = notice{icon: "✔", color: "2"}
	noticeInfo    = notice{icon: "ℹ", color: "8", dim: true}
	noticeWarn    = notice{icon: "⚠", label: "Warning:", color: "3", bold: true}
	noticeError   = notice{icon: "✘", label: "Error:", color: "1", bold: true}
)

// write prints msg on one line. Without colors only the label is kept.
func (n notice) write(w io.Writer, msg string) {
	if !render.ColorsEnabled() {
		if n.label != "" {
			msg = n.label + " " + msg
		}
		fmt.Fprintln(w, msg)
		return
	}

	style := lipgloss.NewStyle().Foreground(n.color).Bold(n.bold)
	prefix := style.Render(n.icon)
	if n.label != "" {
		prefix += " " + style.Render(n.label)
	}
	if n.dim {
		msg = lipgloss.NewStyle().Foreground(n.color).Render(msg)
	}
	fmt.Fprintf(w, "%s %s\n", prefix, msg)
}
