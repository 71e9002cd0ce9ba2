package tess

import (
	"fmt"
	"strings"
)

// Authority is a pipeline that publishes lightcurves for a sector.
type Authority int

const (
	AuthorityUnknown Authority = iota
	SPOC
	TESSSPOC
	QLP
	ELEANOR
)

// Priority lists authorities from most to least preferred.
var Priority = [...]Authority{SPOC, TESSSPOC, QLP, ELEANOR}

var authorityNames = map[Authority]string{
	SPOC:     "SPOC",
	TESSSPOC: "TESS-SPOC",
	QLP:      "QLP",
	ELEANOR:  "ELEANOR",
}

var authorityAliases = map[string]Authority{
	"GSFC-ELEANOR-LITE": ELEANOR,
	"ELEANOR-LITE":      ELEANOR,
}

func (a Authority) String() string {
	if name, ok := authorityNames[a]; ok {
		return name
	}
	return "UNKNOWN"
}

// Rank is the authority's position in Priority; lower wins. Unknown
// authorities rank after every known one.
func (a Authority) Rank() int {
	for i, p := range Priority {
		if p == a {
			return i
		}
	}
	return len(Priority)
}

// ParseAuthority maps a provenance name to an Authority. Matching ignores
// case and treats '_' like '-'.
func ParseAuthority(s string) (Authority, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "_", "-"))
	for a, name := range authorityNames {
		if name == norm {
			return a, nil
		}
	}
	if a, ok := authorityAliases[norm]; ok {
		return a, nil
	}
	return AuthorityUnknown, fmt.Errorf("unknown authority %q", s)
}

func (a Authority) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Authority) UnmarshalText(b []byte) error {
	if string(b) == AuthorityUnknown.String() {
		*a = AuthorityUnknown
		return nil
	}
	parsed, err := ParseAuthority(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
