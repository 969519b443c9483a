package domain

import (
	"strings"
)

// Sentinels substituted for missing cadastral sub-fields.
const (
	UnknownCommune     = "COMMUNE INCONNUE"
	UnknownCommuneCode = "00000"
	UnknownSection     = "XX"
	UnknownNumber      = "0000"
	UnknownNature      = "Non renseigné"
)

// Provenance records where a CadastralRecord came from. It is diagnostic only.
type Provenance string

const (
	ProvenanceAuthoritative Provenance = "authoritative"
	ProvenanceSynthesized   Provenance = "synthesized"
)

// CadastralRecord is the resolved parcel for a coordinate.
type CadastralRecord struct {
	Commune      string     `json:"commune"`
	CommuneCode  string     `json:"commune_code"`
	Section      string     `json:"section"`
	ParcelNumber string     `json:"parcel_number"`
	SurfaceM2    int        `json:"surface_m2"`
	NatureLabel  string     `json:"nature"`
	Owner        *string    `json:"owner,omitempty"`
	Provenance   Provenance `json:"provenance"`
}

// Reference returns the cadastral reference "<section> <number>".
func (r CadastralRecord) Reference() string {
	return r.Section + " " + r.ParcelNumber
}

// HasOwner reports whether an owner is known for the parcel.
func (r CadastralRecord) HasOwner() bool {
	return r.Owner != nil && strings.TrimSpace(*r.Owner) != ""
}

// Clone returns a copy that shares no pointers with r.
func (r CadastralRecord) Clone() CadastralRecord {
	if r.Owner != nil {
		owner := *r.Owner
		r.Owner = &owner
	}
	return r
}

// natureLabels maps land-registry culture codes to display labels.
var natureLabels = map[string]string{
	"S":  "SOL",
	"T":  "TERRE",
	"P":  "PRÉS",
	"B":  "BOIS",
	"L":  "LANDE",
	"J":  "JARDIN",
	"V":  "VERGER",
	"VG": "VIGNE",
	"AB": "TERRAIN À BÂTIR",
	"BT": "BÂTI",
	"CH": "CHEMIN",
	"E":  "EAU",
}

// NatureLabel converts a culture code to its label. Empty codes yield
// UnknownNature; unknown codes are returned unchanged.
func NatureLabel(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return UnknownNature
	}
	if label, ok := natureLabels[strings.ToUpper(code)]; ok {
		return label
	}
	return code
}
