package pipeline

import (
	"tesslc/internal/coordinator"
	"tesslc/internal/tess"
)

// PlotView is the JSON form of a drawn sector.
type PlotView struct {
	Epoch     int       `json:"sector"`
	Authority string    `json:"authority"`
	Title     string    `json:"title"`
	Time      []float64 `json:"time"`
	Flux      []float64 `json:"flux"`
	Events    []float64 `json:"momentum_dumps"`
}

type FailureView struct {
	Epoch     int    `json:"sector"`
	Authority string `json:"authority"`
	Title     string `json:"title"`
	Error     string `json:"error"`
}

type MetadataView struct {
	State string `json:"state"`
	Text  string `json:"text,omitempty"`
}

// PageView is the JSON document a page view produces.
type PageView struct {
	Intro       bool             `json:"intro,omitempty"`
	Target      string           `json:"target,omitempty"`
	Messages    []string         `json:"messages,omitempty"`
	Sectors     []int            `json:"sectors,omitempty"`
	ByAuthority map[string][]int `json:"sectors_by_authority,omitempty"`
	Pages       []string         `json:"pages,omitempty"`
	CurrentPage int              `json:"current_page,omitempty"`
	Plots       []PlotView       `json:"plots,omitempty"`
	Failures    []FailureView    `json:"failures,omitempty"`
	Metadata    *MetadataView    `json:"metadata,omitempty"`
}

// Collector is a Renderer that accumulates a PageView.
type Collector struct {
	View PageView
}

func (c *Collector) Intro() { c.View.Intro = true }

func (c *Collector) Header(id tess.Identifier) { c.View.Target = id.Target() }

func (c *Collector) Message(text string) { c.View.Messages = append(c.View.Messages, text) }

func (c *Collector) Sectors(s tess.SectorSummary) {
	c.View.Sectors = s.All
	c.View.ByAuthority = make(map[string][]int, len(s.ByAuthority))
	for a, epochs := range s.ByAuthority {
		c.View.ByAuthority[a.String()] = epochs
	}
}

func (c *Collector) Pages(labels []string, current int) {
	c.View.Pages = labels
	c.View.CurrentPage = current
}

func (c *Collector) Epoch(p EpochPlot) {
	c.View.Plots = append(c.View.Plots, PlotView{
		Epoch:     p.Epoch,
		Authority: p.Authority.String(),
		Title:     p.Title,
		Time:      p.Series.Time,
		Flux:      p.Series.Flux,
		Events:    p.Events,
	})
}

func (c *Collector) EpochError(f EpochFailure) {
	c.View.Failures = append(c.View.Failures, FailureView{
		Epoch:     f.Epoch,
		Authority: f.Authority.String(),
		Title:     f.Title,
		Error:     f.Err.Error(),
	})
}

func (c *Collector) Metadata(st coordinator.Status) {
	c.View.Metadata = &MetadataView{State: st.State.String(), Text: st.Text}
}

var _ Renderer = (*Collector)(nil)
