// Package progress renders the downloader's progress callback as a
// single redrawn line on a terminal, styled with Lipgloss and adapted to
// the terminal's color profile via Termenv.
package progress

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/JackRipper1888/GPUFabric/internal/downloader"
)

const barWidth = 30

var (
	filledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	emptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	labelStyle  = lipgloss.NewStyle().Bold(true)
)

// Bar renders Progress updates as a redrawn terminal line.
type Bar struct {
	w       io.Writer
	label   string
	profile termenv.Profile
}

// NewBar returns a Bar writing to w. Colors come from lipgloss's default
// renderer, which inspects standard output and the environment, not w;
// the profile read from termenv.EnvColorProfile is stored but not used
// when rendering.
func NewBar(w io.Writer, label string) *Bar {
	return &Bar{w: w, label: label, profile: termenv.EnvColorProfile()}
}

// Render implements downloader.ProgressFunc.
func (b *Bar) Render(p downloader.Progress) {
	filled := int(p.Pct / 100 * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	bar := filledStyle.Render(strings.Repeat("=", filled)) +
		emptyStyle.Render(strings.Repeat(" ", barWidth-filled))

	line := fmt.Sprintf("\r%s [%s] %5.1f%%  %s/s  eta %s",
		labelStyle.Render(b.label),
		bar,
		p.Pct,
		humanBytes(p.SpeedBps),
		humanDuration(p.ETA),
	)

	fmt.Fprint(b.w, line)
}

// Done prints a trailing newline once the download completes, so the
// next log line doesn't overwrite the final progress render.
func (b *Bar) Done() {
	fmt.Fprintln(b.w)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func humanDuration(d time.Duration) string {
	if d <= 0 || d == time.Duration(1<<63-1) {
		return "?"
	}
	d = d.Round(time.Second)
	return d.String()
}
