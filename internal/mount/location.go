package mount

import (
	"fmt"

	"github.com/soniakeys/meeus/v3/globe"
	"github.com/soniakeys/unit"
)

// Location is the geodetic position of an observing site.
//
// The embedded globe.Coord follows the meeus convention of longitude measured
// positive westward. NewLocation and Longitude use the east-positive
// convention found in config files.
type Location struct {
	Coord globe.Coord
	// Height is metres above the reference ellipsoid.
	Height float64
}

// NewLocation builds a Location from degrees (east-positive longitude) and metres.
func NewLocation(latitude, longitude, height float64) Location {
	return Location{
		Coord: globe.Coord{
			Lat: unit.AngleFromDeg(latitude),
			Lon: unit.AngleFromDeg(-longitude),
		},
		Height: height,
	}
}

// Latitude returns the latitude in degrees, north positive.
func (l Location) Latitude() float64 {
	return l.Coord.Lat.Deg()
}

// Longitude returns the longitude in degrees, east positive.
func (l Location) Longitude() float64 {
	return -l.Coord.Lon.Deg()
}

func (l Location) String() string {
	return fmt.Sprintf("lat %.6f lon %.6f height %.1fm", l.Latitude(), l.Longitude(), l.Height)
}
