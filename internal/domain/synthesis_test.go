package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testParis = "PARIS"

func TestSynthesize_GoldenParis(t *testing.T) {
	c := Coordinate{Lat: 48.8566, Lon: 2.3522}

	// a = 856, b = 352, a+b = 1208, a*b = 301312
	assert.Equal(t, int64(856), scaledAxis(c.Lat))
	assert.Equal(t, int64(352), scaledAxis(c.Lon))

	rec := Synthesize(c, Commune{})
	assert.Equal(t, "AM", rec.Section)
	assert.Equal(t, "1208", rec.ParcelNumber)
	assert.Equal(t, 1308, rec.SurfaceM2)
	assert.Equal(t, "LANDE", rec.NatureLabel)
	assert.Equal(t, UnknownCommune, rec.Commune)
	assert.Equal(t, UnknownCommuneCode, rec.CommuneCode)
	assert.Nil(t, rec.Owner)
	assert.Equal(t, ProvenanceSynthesized, rec.Provenance)
	assert.Equal(t, "AM 1208", rec.Reference())
}

func TestSynthesize_Deterministic(t *testing.T) {
	coords := []Coordinate{
		{Lat: 48.8566, Lon: 2.3522},
		{Lat: 43.2965, Lon: 5.3698},
		{Lat: -33.8688, Lon: 151.2093},
		{Lat: 0, Lon: 0},
	}
	for _, c := range coords {
		first := Synthesize(c, Commune{Name: "Lyon", Code: "69123"})
		second := Synthesize(c, Commune{Name: "Lyon", Code: "69123"})
		assert.Equal(t, first, second, "coordinate %s", c)
	}
}

func TestSynthesize_CommuneFromReverseGeocode(t *testing.T) {
	rec := Synthesize(Coordinate{Lat: 48.8566, Lon: 2.3522}, Commune{Name: "Paris", Code: "75056"})
	assert.Equal(t, testParis, rec.Commune)
	assert.Equal(t, "75056", rec.CommuneCode)
}

func TestSynthesize_SurfaceBounds(t *testing.T) {
	for lat := -90.0; lat <= 90.0; lat += 0.7311 {
		for lon := -180.0; lon <= 180.0; lon += 1.3377 {
			rec := Synthesize(Coordinate{Lat: lat, Lon: lon}, Commune{})
			require.GreaterOrEqual(t, rec.SurfaceM2, 100)
			require.LessOrEqual(t, rec.SurfaceM2, 1999)
			require.Len(t, rec.ParcelNumber, 4)
			require.NotEmpty(t, rec.Section)
		}
	}
}

func TestSynthesize_NegativeCoordinatesUseAbsoluteValue(t *testing.T) {
	pos := Synthesize(Coordinate{Lat: 12.345, Lon: 67.891}, Commune{})
	neg := Synthesize(Coordinate{Lat: -12.345, Lon: -67.891}, Commune{})
	assert.Equal(t, pos, neg)
}

func TestSynthesize_NonFiniteInput(t *testing.T) {
	rec := Synthesize(Coordinate{Lat: math.NaN(), Lon: math.Inf(1)}, Commune{})
	assert.Equal(t, "AB", rec.Section)
	assert.Equal(t, "0000", rec.ParcelNumber)
	assert.Equal(t, 100, rec.SurfaceM2)
}

func TestScaledAxis(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want int64
	}{
		{"zero", 0, 0},
		{"fraction", 0.0009, 0},
		{"wraps at 1000", 1.0, 0},
		{"paris lat", 48.8566, 856},
		{"negative", -2.3522, 352},
		{"max lon", 180, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scaledAxis(tt.in))
		})
	}
}
