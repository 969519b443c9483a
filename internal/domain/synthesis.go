package domain

import (
	"fmt"
	"math"
	"strings"
)

// SyntheticSections are the section codes a synthesized record can carry.
var SyntheticSections = []string{
	"AB", "AC", "AD", "AE", "AH", "AI", "AK", "AL", "AM", "AN",
	"AO", "AP", "AR", "AS", "AT", "AV", "AW", "AX", "AY", "AZ",
}

// SyntheticNatures are the nature labels a synthesized record can carry.
var SyntheticNatures = []string{
	"SOL", "TERRE", "PRÉS", "BOIS", "LANDE", "JARDIN",
	"VERGER", "VIGNE", "TERRAIN À BÂTIR", "BÂTI", "CHEMIN", "EAU",
}

// Synthesize derives a deterministic pseudo-record from a coordinate:
//
//	a       = floor(|lat| × 1000) mod 1000
//	b       = floor(|lon| × 1000) mod 1000
//	section = SyntheticSections[(a + b) mod len]
//	nature  = SyntheticNatures[(a × b) mod len]
//	numero  = (a + b) mod 9999, zero-padded to 4 digits
//	surface = 100 + (a + b) mod 1900
//
// The commune comes from a prior reverse geocode; a zero Commune yields the
// unknown sentinels. The owner is always left unset.
func Synthesize(c Coordinate, commune Commune) CadastralRecord {
	a := scaledAxis(c.Lat)
	b := scaledAxis(c.Lon)

	name := strings.ToUpper(strings.TrimSpace(commune.Name))
	if name == "" {
		name = UnknownCommune
	}
	code := strings.TrimSpace(commune.Code)
	if code == "" {
		code = UnknownCommuneCode
	}

	return CadastralRecord{
		Commune:      name,
		CommuneCode:  code,
		Section:      SyntheticSections[(a+b)%int64(len(SyntheticSections))],
		ParcelNumber: fmt.Sprintf("%04d", (a+b)%9999),
		SurfaceM2:    int(100 + (a+b)%1900),
		NatureLabel:  SyntheticNatures[(a*b)%int64(len(SyntheticNatures))],
		Provenance:   ProvenanceSynthesized,
	}
}

// scaledAxis truncates |v| × 1000 into [0, 1000). Non-finite input maps to 0.
func scaledAxis(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int64(math.Floor(math.Abs(v)*1000)) % 1000
}
