package geo

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Radius is a user-selectable neighborhood radius in kilometers.
type Radius int

// Neighborhood radius options.
const (
	Radius3Km Radius = 3
	Radius4Km Radius = 4
	Radius5Km Radius = 5
)

// DefaultRadius is used when the caller does not choose one.
const DefaultRadius = Radius5Km

// Radii lists the selectable radii in ascending order.
var Radii = []Radius{Radius3Km, Radius4Km, Radius5Km}

// Km returns the radius as a float for distance comparisons.
func (r Radius) Km() float64 { return float64(r) }

// String returns the radius in km without a unit.
func (r Radius) String() string { return strconv.Itoa(int(r)) }

// Valid reports whether r is one of Radii.
func (r Radius) Valid() bool {
	for _, v := range Radii {
		if r == v {
			return true
		}
	}
	return false
}

// ParseRadius parses a radius string such as "4" or "4km".
// An empty string yields def.
func ParseRadius(s string, def Radius) (Radius, error) {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "km")
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, eris.Errorf("invalid radius: %q", s)
	}
	r := Radius(n)
	if !r.Valid() {
		return 0, eris.Errorf("invalid radius: %d (must be 3, 4, or 5)", n)
	}
	return r, nil
}
