package pipeline

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"tesslc/internal/coordinator"
	"tesslc/internal/tess"
)

var (
	titleStyle = color.New(color.FgBlue, color.Bold).SprintFunc()
	warnStyle  = color.New(color.FgYellow).SprintFunc()
	errStyle   = color.New(color.FgRed).SprintFunc()
	dimStyle   = color.New(color.FgHiBlack).SprintFunc()
)

// TextRenderer writes a page view as plain terminal text. It summarizes each
// lightcurve instead of drawing it.
type TextRenderer struct {
	w io.Writer
}

func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{w: w}
}

func (t *TextRenderer) Intro() {
	fmt.Fprintln(t.w, titleStyle("TESS Lightcurves"))
	fmt.Fprintln(t.w, "Enter a TIC number to plot every sector TESS observed it in.")
}

func (t *TextRenderer) Header(id tess.Identifier) {
	fmt.Fprintln(t.w, titleStyle(id.Target()))
}

func (t *TextRenderer) Message(text string) {
	fmt.Fprintln(t.w, warnStyle(text))
}

func (t *TextRenderer) Sectors(s tess.SectorSummary) {
	fmt.Fprintf(t.w, "Observed sectors: %s\n", joinInts(s.All))
	auths := make([]tess.Authority, 0, len(s.ByAuthority))
	for a := range s.ByAuthority {
		auths = append(auths, a)
	}
	sort.Slice(auths, func(i, j int) bool { return auths[i].Rank() < auths[j].Rank() })
	for _, a := range auths {
		fmt.Fprintf(t.w, "  %-9s %s\n", a.String()+":", joinInts(s.ByAuthority[a]))
	}
}

func (t *TextRenderer) Pages(labels []string, current int) {
	for i, l := range labels {
		marker := " "
		if i+1 == current {
			marker = "*"
		}
		fmt.Fprintf(t.w, "%s page %d: %s\n", marker, i+1, dimStyle(l))
	}
}

func (t *TextRenderer) Epoch(p EpochPlot) {
	lo, hi, _ := tess.Span(p.Series.Time)
	fmt.Fprintf(t.w, "%s  %d points, BTJD %.3f-%.3f", titleStyle(p.Title), len(p.Series.Time), lo, hi)
	if len(p.Events) > 0 {
		parts := make([]string, len(p.Events))
		for i, e := range p.Events {
			parts[i] = fmt.Sprintf("%.3f", e)
		}
		fmt.Fprintf(t.w, ", momentum dumps: %s", strings.Join(parts, " "))
	}
	fmt.Fprintln(t.w)
}

func (t *TextRenderer) EpochError(f EpochFailure) {
	fmt.Fprintln(t.w, errStyle(fmt.Sprintf("Error reading lightcurve sector %d (%s): %v", f.Epoch, f.Authority, f.Err)))
}

func (t *TextRenderer) Metadata(st coordinator.Status) {
	if st.Failed() {
		fmt.Fprintln(t.w, warnStyle(st.Text))
		return
	}
	if st.Text == "" {
		return
	}
	fmt.Fprintln(t.w, st.Text)
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

var _ Renderer = (*TextRenderer)(nil)
