package tess

import (
	"fmt"
	"strconv"
	"strings"
)

// Identifier names a target by TIC number. The zero value means no target.
type Identifier string

// NoIdentifier is what invalid user input coerces to.
const NoIdentifier Identifier = ""

const maxIdentifierDigits = 10

// ParseIdentifier coerces raw user input into a TIC identifier. Anything that
// is not a positive integer of at most ten digits yields NoIdentifier.
func ParseIdentifier(raw string) Identifier {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxIdentifierDigits {
		return NoIdentifier
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return NoIdentifier
	}
	return Identifier(strconv.FormatUint(n, 10))
}

// Valid reports whether the identifier can drive a retrieval.
func (id Identifier) Valid() bool { return id != NoIdentifier }

// Target is the name external services resolve, e.g. "TIC 165795955".
func (id Identifier) Target() string { return "TIC " + string(id) }

// ObservationRecord is one row of a search result.
type ObservationRecord struct {
	Epoch            int
	Authority        Authority
	ExposureDuration float64 // seconds
	SourceIndex      string
}

// FluxChannel selects which flux column a lightcurve is built from.
type FluxChannel int

const (
	PDCSAP FluxChannel = iota
	SAP
)

func (f FluxChannel) String() string {
	if f == SAP {
		return "SAP flux"
	}
	return "PDCSAP flux"
}

// Column is the flux column name handed to the materialization service.
func (f FluxChannel) Column() string {
	if f == SAP {
		return "sap_flux"
	}
	return "pdcsap_flux"
}

// ParseFluxChannel accepts "pdcsap", "sap" and the display names. Empty
// input selects PDCSAP.
func ParseFluxChannel(s string) (FluxChannel, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.TrimSuffix(norm, " flux")
	switch norm {
	case "", "pdcsap":
		return PDCSAP, nil
	case "sap":
		return SAP, nil
	}
	return PDCSAP, fmt.Errorf("unknown flux channel %q", s)
}
