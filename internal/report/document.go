// Package report lays out and renders the cadastral extract PDF.
//
// Layout is a pure function of the record, the coordinate, an optional map
// snapshot and the branding strings: Compose positions every block on A4
// pages in millimetres, and RenderPDF only serializes the result. This keeps
// pagination testable without parsing PDF output.
package report

import (
	"time"

	"github.com/couchcryptid/cadastre-extract-service/internal/domain"
)

// Section identifies which part of the extract a block belongs to.
type Section string

const (
	SectionHeader      Section = "header"
	SectionParcel      Section = "parcel"
	SectionCoordinates Section = "coordinates"
	SectionOwner       Section = "owner"
	SectionSnapshot    Section = "snapshot"
	SectionFooter      Section = "footer"
)

// BlockKind selects how a block is drawn.
type BlockKind int

const (
	BlockText BlockKind = iota
	BlockRule
	BlockImage
)

// Align is the horizontal anchoring of a text block relative to X.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
)

// Font styles understood by the renderer.
const (
	StyleRegular = ""
	StyleBold    = "B"
	StyleItalic  = "I"
)

// Block is one positioned element. Y is the text baseline for text blocks and
// the top edge for rules and images.
type Block struct {
	Section  Section
	Kind     BlockKind
	X, Y     float64
	Width    float64
	Height   float64
	Text     string
	FontSize float64
	Style    string
	Align    Align
	Image    *domain.ImageBuffer
}

// Page is an ordered list of blocks drawn on one sheet.
type Page struct {
	Blocks []Block
}

// Document is a composed extract, ready for rendering.
type Document struct {
	ID          string
	Title       string
	Filename    string
	GeneratedAt time.Time
	Pages       []Page
}

// Sections returns the distinct sections in drawing order.
func (d Document) Sections() []Section {
	var out []Section
	seen := make(map[Section]bool)
	for _, p := range d.Pages {
		for _, b := range p.Blocks {
			if !seen[b.Section] {
				seen[b.Section] = true
				out = append(out, b.Section)
			}
		}
	}
	return out
}

// Find returns the first block of the given section and kind, with its page
// index. ok is false when no such block exists.
func (d Document) Find(section Section, kind BlockKind) (b Block, page int, ok bool) {
	for i, p := range d.Pages {
		for _, blk := range p.Blocks {
			if blk.Section == section && blk.Kind == kind {
				return blk, i, true
			}
		}
	}
	return Block{}, 0, false
}
