package filter

import "fmt"

const EarthRadiusKm = 6371.0

// Geo bounds a query to a radius around a point.
type Geo struct {
	Lat      float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng      float64 `json:"lng" validate:"gte=-180,lte=180"`
	RadiusKm float64 `json:"radius_km" validate:"gt=0,lte=1000"`
}

// Build returns the haversine distance (km) between the point and the row
// coordinates latCol/lngCol, and the predicate bounding it by RadiusKm.
// Rows with NULL coordinates never match.
func (g Geo) Build(a *Args, latCol, lngCol string) (distance, within string) {
	lat := a.Add(g.Lat) + "::double precision"
	lng := a.Add(g.Lng) + "::double precision"
	distance = fmt.Sprintf(
		"(%g * 2 * asin(sqrt(power(sin(radians(%s - %s) / 2), 2) + cos(radians(%s)) * cos(radians(%s)) * power(sin(radians(%s - %s) / 2), 2))))",
		EarthRadiusKm, latCol, lat, lat, latCol, lngCol, lng,
	)
	within = fmt.Sprintf("(%s IS NOT NULL AND %s IS NOT NULL AND %s <= %s)",
		latCol, lngCol, distance, a.Add(g.RadiusKm)+"::double precision")
	return distance, within
}
