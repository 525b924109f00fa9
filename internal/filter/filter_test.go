package filter

import (
	"math"
	"strings"
	"testing"

	"github.com/ariefcatur/marketplace-core/internal/apperr"
	"github.com/ariefcatur/marketplace-core/internal/redisx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func key(t *testing.T, p redisx.Prefix, canonical map[string]any) string {
	t.Helper()
	k, err := Key(p, canonical)
	require.NoError(t, err)
	return k
}

func TestEmptyFilterIsAll(t *testing.T) {
	assert.Equal(t, "products:all", key(t, redisx.Products, ProductFilter{}.Canonical()))
	assert.Equal(t, "services:all", key(t, redisx.Services, ServiceFilter{}.Canonical()))

	// default pagination and whitespace-only fields normalize away
	f := ProductFilter{Category: "  ", Tags: []string{" ", ""}, Pagination: Pagination{Page: 1, PageSize: DefaultPageSize}}
	assert.Equal(t, "products:all", key(t, redisx.Products, f.Canonical()))
}

func TestEquivalentFiltersShareKey(t *testing.T) {
	a := ProductFilter{
		Category:   "Electronics ",
		MinPrice:   ptr(100),
		Tags:       []string{"sale", "new", "sale"},
		City:       "Pune",
		Attributes: map[string]any{"color": " red ", "size": map[string]any{"b": 2, "a": 1}},
	}
	b := ProductFilter{
		Category:   "electronics",
		MinPrice:   ptr(100.0),
		Tags:       []string{"new", " sale"},
		City:       " pune",
		Attributes: map[string]any{"size": map[string]any{"a": 1, "b": 2}, "color": "red"},
	}
	ka := key(t, redisx.Products, a.Canonical())
	kb := key(t, redisx.Products, b.Canonical())
	assert.Equal(t, ka, kb)
	assert.True(t, strings.HasPrefix(ka, "products:"))
	assert.Len(t, strings.TrimPrefix(ka, "products:"), 64)

	b.Pagination.Page = 2
	assert.NotEqual(t, ka, key(t, redisx.Products, b.Canonical()), "page is part of the key")
}

func TestNonFiniteFilterRejected(t *testing.T) {
	f := ProductFilter{MinPrice: ptr(math.Inf(1))}
	assert.ErrorIs(t, f.Validate(), apperr.ErrValidation)

	_, err := Key(redisx.Products, map[string]any{"minPrice": math.Inf(1)})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestAttributesNormalizedAtBoundary(t *testing.T) {
	f, err := DecodeProductFilter(map[string]any{
		"attributes": map[string]any{" color": " red ", "dims": map[string]any{"w ": " 2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"color": "red", "dims": map[string]any{"w": "2"}}, f.Attributes)

	padded := ProductFilter{Attributes: map[string]any{"color": " red"}}
	plain := ProductFilter{Attributes: map[string]any{"color": "red"}}
	assert.Equal(t, key(t, redisx.Products, plain.Canonical()), key(t, redisx.Products, padded.Canonical()))
	assert.Equal(t, NormalizeAttributes(plain.Attributes), NormalizeAttributes(padded.Attributes),
		"the query condition sees the same map as the cache key")
	assert.Nil(t, NormalizeAttributes(nil))
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, NormalizeTags([]string{"c", " a", "b", "a ", ""}))
	assert.Empty(t, NormalizeTags(nil))
}

func TestDecodeProductFilter(t *testing.T) {
	f, err := DecodeProductFilter(map[string]any{
		"category":  "Books",
		"min_price": "10.5",
		"max_price": 99,
		"tags":      "fiction,classic",
		"lat":       "18.52",
		"lng":       "73.85",
		"radius":    "5",
		"page":      "3",
		"page_size": "500",
	})
	require.NoError(t, err)
	assert.Equal(t, "Books", f.Category)
	assert.Equal(t, 10.5, *f.MinPrice)
	assert.Equal(t, 99.0, *f.MaxPrice)
	assert.Equal(t, []string{"fiction", "classic"}, f.Tags)
	require.NotNil(t, f.Geo)
	assert.Equal(t, 5.0, f.Geo.RadiusKm)
	assert.Equal(t, 3, f.Page)
	assert.Equal(t, MaxPageSize, f.PageSize)
}

func TestDecodeRejectsBadInput(t *testing.T) {
	cases := map[string]map[string]any{
		"price not numeric": {"min_price": "cheap"},
		"inverted range":    {"min_price": 50, "max_price": 10},
		"lat without lng":   {"lat": 10},
		"lat out of range":  {"lat": 120, "lng": 0},
		"negative radius":   {"lat": 1, "lng": 1, "radius": -3},
		"page not numeric":  {"page": "two"},
		"infinite price":    {"min_price": "Inf"},
		"nan price":         {"max_price": "NaN"},
		"infinite radius":   {"lat": 1, "lng": 1, "radius": "+Inf"},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeProductFilter(raw)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestDecodeServiceFilter(t *testing.T) {
	f, err := DecodeServiceFilter(map[string]any{"category": "salon", "available_now": "true"})
	require.NoError(t, err)
	assert.True(t, f.AvailableNow)
	assert.Nil(t, f.Geo)
	assert.Equal(t, Pagination{Page: 1, PageSize: DefaultPageSize}, f.Pagination)
}

func TestPaginationWindow(t *testing.T) {
	limit, offset := Pagination{Page: 3, PageSize: 10}.Window()
	assert.Equal(t, 11, limit)
	assert.Equal(t, 20, offset)

	limit, offset = Pagination{}.Window()
	assert.Equal(t, DefaultPageSize+1, limit)
	assert.Equal(t, 0, offset)
}

func TestGeoBuild(t *testing.T) {
	var a Args
	a.Add("shop-1")
	dist, within := Geo{Lat: 18.5, Lng: 73.8, RadiusKm: 7}.Build(&a, "s.latitude", "s.longitude")

	assert.Contains(t, dist, "6371 * 2 * asin(sqrt(")
	assert.Contains(t, dist, "radians(s.latitude - $2::double precision)")
	assert.Contains(t, dist, "radians(s.longitude - $3::double precision)")
	assert.True(t, strings.HasPrefix(within, "(s.latitude IS NOT NULL AND s.longitude IS NOT NULL AND "))
	assert.True(t, strings.HasSuffix(within, "<= $4::double precision)"))
	assert.Equal(t, []any{"shop-1", 18.5, 73.8, 7.0}, a.Values())
}
