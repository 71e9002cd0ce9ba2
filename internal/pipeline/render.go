package pipeline

import (
	"tesslc/internal/archive"
	"tesslc/internal/coordinator"
	"tesslc/internal/tess"
)

// EpochPlot is everything the presentation layer needs to draw one sector.
type EpochPlot struct {
	Epoch     int
	Authority tess.Authority
	Title     string
	Series    archive.Series
	Events    []float64
}

// EpochFailure is an inline note for a sector that could not be drawn.
type EpochFailure struct {
	Epoch     int
	Authority tess.Authority
	Title     string
	Err       error
}

// Renderer is the presentation surface a page view draws into. Calls arrive
// in page order on the page-render path.
type Renderer interface {
	Intro()
	Header(id tess.Identifier)
	Message(text string)
	Sectors(summary tess.SectorSummary)
	Pages(labels []string, current int)
	Epoch(plot EpochPlot)
	EpochError(f EpochFailure)
	Metadata(st coordinator.Status)
}
