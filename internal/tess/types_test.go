package tess

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want Identifier
	}{
		{"165795955", "165795955"},
		{" 0042 ", "42"},
		{"", NoIdentifier},
		{"abc", NoIdentifier},
		{"-5", NoIdentifier},
		{"0", NoIdentifier},
		{"12345678901", NoIdentifier},
		{"1.5", NoIdentifier},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseIdentifier(tt.in), "input %q", tt.in)
	}
	assert.Equal(t, "TIC 42", Identifier("42").Target())
	assert.False(t, NoIdentifier.Valid())
}

func TestParseFluxChannel(t *testing.T) {
	for in, want := range map[string]FluxChannel{
		"":            PDCSAP,
		"pdcsap":      PDCSAP,
		"PDCSAP flux": PDCSAP,
		"SAP flux":    SAP,
		"sap":         SAP,
	} {
		got, err := ParseFluxChannel(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFluxChannel("kspsap")
	assert.Error(t, err)
	assert.Equal(t, "sap_flux", SAP.Column())
}
