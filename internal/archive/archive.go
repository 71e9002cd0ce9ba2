// Package archive holds the contracts and HTTP clients for the external
// services the retrieval pipeline depends on: the observation search, the
// stellar catalog, lightcurve materialization and the momentum-dump feed.
package archive

import (
	"context"

	"tesslc/internal/tess"
)

// Mission is the only mission the search is asked about.
const Mission = "TESS"

// Star holds the catalog fields shown in the metadata panel. Nil means the
// catalog has no value.
type Star struct {
	RA       *float64 `json:"ra"`
	Dec      *float64 `json:"dec"`
	Tmag     *float64 `json:"Tmag"`
	Rad      *float64 `json:"rad"`
	Mass     *float64 `json:"mass"`
	Teff     *float64 `json:"Teff"`
	Logg     *float64 `json:"logg"`
	MH       *float64 `json:"MH"`
	Rho      *float64 `json:"rho"`
	Distance *float64 `json:"d"`
}

// Series is a materialized lightcurve. Time is in BTJD days.
type Series struct {
	Time []float64 `json:"time"`
	Flux []float64 `json:"flux"`
}

// MaterializeRequest asks for one product to be downloaded and cleaned.
type MaterializeRequest struct {
	SourceIndex    string
	Authority      tess.Authority
	FluxColumn     string
	QualityBitmask string
	SigmaLower     float64
	SigmaUpper     float64
}

type Searcher interface {
	Search(ctx context.Context, target, mission string) ([]tess.ObservationRecord, error)
}

type CatalogQuerier interface {
	Query(ctx context.Context, target string, radius float64) (Star, error)
}

type Materializer interface {
	Materialize(ctx context.Context, req MaterializeRequest) (Series, error)
}

type DumpFeed interface {
	Fetch(ctx context.Context) ([]float64, error)
}
