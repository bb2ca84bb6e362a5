package serializer

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/geoprofile/internal/model"
)

// CoordinatesRequest is the proximity search input
type CoordinatesRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" validate:"required,min=-180,max=180"`
}

// Point returns the requested location
func (r *CoordinatesRequest) Point() model.GeoPoint {
	return model.NewGeoPoint(*r.Latitude, *r.Longitude)
}

// ParseCoordinates reads latitude and longitude from the JSON body, falling back
// to the query string for values the body does not carry
func ParseCoordinates(c echo.Context) (*CoordinatesRequest, error) {
	req := &CoordinatesRequest{}
	if c.Request().ContentLength > 0 {
		if err := (&echo.DefaultBinder{}).BindBody(c, req); err != nil {
			return nil, bindError(err)
		}
	}

	errs := ValidationErrors{}
	queryFloat(c, errs, "latitude", &req.Latitude)
	queryFloat(c, errs, "longitude", &req.Longitude)
	if len(errs) > 0 {
		return nil, errs
	}
	if err := c.Validate(req); err != nil {
		return nil, err
	}
	return req, nil
}

func queryFloat(c echo.Context, errs ValidationErrors, name string, dst **float64) {
	if *dst != nil {
		return
	}
	raw := c.QueryParam(name)
	if raw == "" {
		return
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		errs.Add(name, "A valid number is required.")
		return
	}
	*dst = &v
}
