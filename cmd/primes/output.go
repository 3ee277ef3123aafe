package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"primekit/internal/engine"
	"primekit/internal/histogram"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	jsoniter "github.com/json-iterator/go"
	"github.com/mattn/go-isatty"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	primeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
)

// chartWidth is the width of the longest histogram bar.
const chartWidth = 50

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// progressLine redraws a single status line on a terminal.
type progressLine struct {
	w   io.Writer
	bar progress.Model
}

func newProgressLine(w io.Writer) *progressLine {
	return &progressLine{
		w:   w,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (p *progressLine) update(pr engine.Progress) {
	fmt.Fprintf(p.w, "\r%s %d primes", p.bar.ViewAs(pr.Fraction()), pr.Found)
}

func (p *progressLine) done() {
	fmt.Fprint(p.w, "\r\033[K")
}

// formatPreview renders primes on wrapped lines of ten.
func formatPreview(primes []uint64) string {
	var sb strings.Builder
	for i, p := range primes {
		switch {
		case i > 0 && i%10 == 0:
			sb.WriteString("\n")
		case i > 0:
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%d", p)
	}
	return sb.String()
}

// renderHistogram renders one row per bucket; with chart, a bar scaled to
// the fullest bucket follows the count.
func renderHistogram(buckets []histogram.Bucket, chart bool) string {
	labelWidth, countWidth, maxCount := 0, 0, 0
	for _, b := range buckets {
		labelWidth = max(labelWidth, len(b.Label))
		countWidth = max(countWidth, len(fmt.Sprint(b.Count)))
		maxCount = max(maxCount, b.Count)
	}

	var sb strings.Builder
	total := 0
	for _, b := range buckets {
		total += b.Count
		fmt.Fprintf(&sb, "%-*s  %*d", labelWidth, b.Label, countWidth, b.Count)
		if chart && maxCount > 0 {
			n := b.Count * chartWidth / maxCount
			if n == 0 && b.Count > 0 {
				n = 1
			}
			sb.WriteString("  ")
			sb.WriteString(barStyle.Render(strings.Repeat("█", n)))
		}
		sb.WriteString("\n")
	}
	sb.WriteString(dimStyle.Render(fmt.Sprintf("%d primes in %d buckets", total, len(buckets))))
	return sb.String()
}
