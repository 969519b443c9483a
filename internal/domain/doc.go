// Package domain models French cadastral parcel data and the coordinate
// conventions used to resolve a map point into a parcel record.
//
// # Data Sources
//
// Addresses come from the Base Adresse Nationale search API
// (https://api-adresse.data.gouv.fr). Parcels come from the IGN API Carto
// cadastre module (https://apicarto.ign.fr/api/cadastre/parcelle), queried
// with a GeoJSON point geometry. Both return GeoJSON where positions are
// ordered [longitude, latitude].
//
// # Cadastral Conventions
//
// Reference format:
//
//	"<section> <numero>"  →  e.g. "AB 0142"
//	section is a one- or two-letter code inside the commune, numero is the
//	parcel number within the section, zero-padded to 4 digits.
//
// Surface ("contenance"):
//
//	Square metres as reported by the land registry. Fractional values are
//	rounded to the nearest integer; negative or missing values become 0.
//
// Culture codes ("type_culture"):
//
//	S SOL, T TERRE, P PRÉS, B BOIS, L LANDE, J JARDIN, V VERGER, VG VIGNE,
//	AB TERRAIN À BÂTIR, BT BÂTI, CH CHEMIN, E EAU. Unknown codes are shown
//	verbatim. See [NatureLabel].
//
// Unknown values:
//
//	Missing sub-fields are replaced by fixed sentinels rather than left empty:
//	section "XX", numero "0000", commune code "00000", nature "Non renseigné",
//	commune "COMMUNE INCONNUE".
//
// # Synthesis
//
// When no authoritative parcel is available, a record is derived from the
// coordinate alone so repeated lookups of the same point always agree. The
// formula is documented on [Synthesize]. Ownership is never synthesized.
package domain
