package filter

import (
	"math"

	"github.com/ariefcatur/marketplace-core/internal/apperr"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
)

// DecodeProductFilter builds a validated ProductFilter from loosely typed
// input (query parameters or a decoded JSON body). Numeric fields are coerced
// from strings; tags may be a list or a comma-separated string.
func DecodeProductFilter(raw map[string]any) (ProductFilter, error) {
	var f ProductFilter
	if err := decodeInto(raw, &f); err != nil {
		return f, err
	}
	var err error
	if f.MinPrice, err = optionalFloat(raw, "min_price"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = optionalFloat(raw, "max_price"); err != nil {
		return f, err
	}
	if f.Geo, err = decodeGeo(raw); err != nil {
		return f, err
	}
	if f.Pagination, err = decodePagination(raw); err != nil {
		return f, err
	}
	f.Attributes = NormalizeAttributes(f.Attributes)
	return f, f.Validate()
}

func DecodeServiceFilter(raw map[string]any) (ServiceFilter, error) {
	var f ServiceFilter
	if err := decodeInto(raw, &f); err != nil {
		return f, err
	}
	var err error
	if f.Geo, err = decodeGeo(raw); err != nil {
		return f, err
	}
	if f.Pagination, err = decodePagination(raw); err != nil {
		return f, err
	}
	return f, f.Validate()
}

func decodeInto(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return apperr.Validation("%v", err)
	}
	return nil
}

func optionalFloat(raw map[string]any, key string) (*float64, error) {
	v, ok := raw[key]
	if !ok || v == nil || v == "" {
		return nil, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return nil, apperr.Validation("%s: %v", key, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, apperr.Validation("%s: must be a finite number", key)
	}
	return &f, nil
}

func decodeGeo(raw map[string]any) (*Geo, error) {
	lat, err := optionalFloat(raw, "lat")
	if err != nil {
		return nil, err
	}
	lng, err := optionalFloat(raw, "lng")
	if err != nil {
		return nil, err
	}
	if lat == nil && lng == nil {
		return nil, nil
	}
	if lat == nil || lng == nil {
		return nil, apperr.Validation("lat and lng must be given together")
	}
	radius, err := optionalFloat(raw, "radius")
	if err != nil {
		return nil, err
	}
	g := &Geo{Lat: *lat, Lng: *lng, RadiusKm: 10}
	if radius != nil {
		g.RadiusKm = *radius
	}
	if err := validate.Struct(g); err != nil {
		return nil, apperr.Validation("geo: %v", err)
	}
	return g, nil
}

func decodePagination(raw map[string]any) (Pagination, error) {
	var p Pagination
	var err error
	if v, ok := raw["page"]; ok {
		if p.Page, err = cast.ToIntE(v); err != nil {
			return p, apperr.Validation("page: %v", err)
		}
	}
	if v, ok := raw["page_size"]; ok {
		if p.PageSize, err = cast.ToIntE(v); err != nil {
			return p, apperr.Validation("page_size: %v", err)
		}
	}
	return p.Normalized(), nil
}
