package domain

import (
	"context"
	"math"
	"strings"
)

// ParcelFeature holds the properties of one parcel returned by the
// authoritative cadastre source. Empty strings mean the field was absent.
type ParcelFeature struct {
	Commune     string   `json:"nom_com,omitempty"`
	CommuneAlt  string   `json:"commune,omitempty"`
	CodeINSEE   string   `json:"code_insee,omitempty"`
	CodeDep     string   `json:"code_dep,omitempty"`
	CodeCom     string   `json:"code_com,omitempty"`
	Section     string   `json:"section,omitempty"`
	Numero      string   `json:"numero,omitempty"`
	Contenance  *float64 `json:"contenance,omitempty"`
	TypeCulture string   `json:"type_culture,omitempty"`
}

// ParcelSource looks up the parcels intersecting a coordinate.
type ParcelSource interface {
	ParcelsAt(ctx context.Context, c Coordinate) ([]ParcelFeature, error)
}

// RecordFromParcel maps an authoritative feature into a CadastralRecord,
// substituting sentinels for missing fields.
func RecordFromParcel(f ParcelFeature) CadastralRecord {
	commune := firstNonEmpty(f.Commune, f.CommuneAlt)
	if commune == "" {
		commune = UnknownCommune
	}

	code := strings.TrimSpace(f.CodeINSEE)
	if code == "" && f.CodeDep != "" && f.CodeCom != "" {
		code = strings.TrimSpace(f.CodeDep) + strings.TrimSpace(f.CodeCom)
	}
	if code == "" {
		code = UnknownCommuneCode
	}

	surface := 0
	if f.Contenance != nil && *f.Contenance > 0 && !math.IsInf(*f.Contenance, 0) {
		surface = int(math.Round(*f.Contenance))
	}

	return CadastralRecord{
		Commune:      strings.ToUpper(commune),
		CommuneCode:  code,
		Section:      orSentinel(f.Section, UnknownSection),
		ParcelNumber: orSentinel(f.Numero, UnknownNumber),
		SurfaceM2:    surface,
		NatureLabel:  NatureLabel(f.TypeCulture),
		Provenance:   ProvenanceAuthoritative,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func orSentinel(v, sentinel string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return sentinel
}
