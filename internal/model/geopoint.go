package model

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/ewkbhex"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SRID of every stored point (WGS 84)
const SRID = 4326

var errNotPoint = errors.New("geometry is not a point")

// GeoPoint is a WGS 84 longitude/latitude pair stored as a PostGIS geography point.
// The zero value is POINT(0 0).
type GeoPoint struct {
	Lng float64
	Lat float64
}

// NewGeoPoint builds a point from latitude and longitude, in that order
func NewGeoPoint(lat, lng float64) GeoPoint {
	return GeoPoint{Lng: lng, Lat: lat}
}

// Valid reports whether the coordinates lie in the WGS 84 range
func (p GeoPoint) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

func (p GeoPoint) String() string {
	return fmt.Sprintf("SRID=%d;POINT (%g %g)", SRID, p.Lng, p.Lat)
}

// GormDataType tells gorm which column type to migrate
func (GeoPoint) GormDataType() string {
	return fmt.Sprintf("geography(Point,%d)", SRID)
}

// GormValue writes the point through PostGIS constructors
func (p GeoPoint) GormValue(ctx context.Context, db *gorm.DB) clause.Expr {
	return clause.Expr{
		SQL:  fmt.Sprintf("ST_SetSRID(ST_MakePoint(?, ?), %d)::geography", SRID),
		Vars: []interface{}{p.Lng, p.Lat},
	}
}

// Scan decodes the EWKB (hex or binary) representation PostGIS returns
func (p *GeoPoint) Scan(src interface{}) error {
	var (
		g   geom.T
		err error
	)
	switch v := src.(type) {
	case nil:
		*p = GeoPoint{}
		return nil
	case string:
		g, err = ewkbhex.Decode(v)
	case []byte:
		if isHex(v) {
			g, err = ewkbhex.Decode(string(v))
		} else {
			g, err = ewkb.Unmarshal(v)
		}
	default:
		return fmt.Errorf("cannot scan %T into GeoPoint", src)
	}
	if err != nil {
		return err
	}

	pt, ok := g.(*geom.Point)
	if !ok {
		return errNotPoint
	}
	p.Lng, p.Lat = pt.X(), pt.Y()
	return nil
}

func isHex(b []byte) bool {
	if len(b)%2 != 0 {
		return false
	}
	_, err := hex.DecodeString(string(b))
	return err == nil
}

type geoJSONPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// MarshalJSON encodes the point as a GeoJSON Point
func (p GeoPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(geoJSONPoint{Type: "Point", Coordinates: []float64{p.Lng, p.Lat}})
}

// UnmarshalJSON decodes a GeoJSON Point
func (p *GeoPoint) UnmarshalJSON(data []byte) error {
	var v geoJSONPoint
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Type != "Point" || len(v.Coordinates) != 2 {
		return errors.New(`expected a GeoJSON Point {"type":"Point","coordinates":[lon,lat]}`)
	}
	p.Lng, p.Lat = v.Coordinates[0], v.Coordinates[1]
	return nil
}
