package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/couchcryptid/cadastre-extract-service/internal/domain"
)

// A4 portrait geometry in millimetres.
const (
	PageWidth  = 210.0
	PageHeight = 297.0

	marginLeft  = 20.0
	valueColumn = 80.0

	titleY        = 30.0
	subtitleY     = 45.0
	subtitleStep  = 10.0
	ruleToHeading = 20.0
	headingToRow  = 20.0
	rowStep       = 12.0
	sectionGap    = 10.0

	imageWidth     = 170.0
	imageGap       = 20.0
	imageHeadingTo = 15.0
	newPageTop     = 30.0
	bottomLimit    = PageHeight - 40
	footerTop      = PageHeight - 30
	footerStep     = 8.0

	titleSize    = 20.0
	subtitleSize = 12.0
	headingSize  = 14.0
	bodySize     = 11.0
	footerSize   = 8.0
)

// Composer lays out extracts with a fixed branding.
type Composer struct {
	branding Branding
}

// NewComposer creates a Composer.
func NewComposer(b Branding) *Composer {
	return &Composer{branding: b}
}

// Compose lays out an extract with the default branding.
func Compose(rec domain.CadastralRecord, coord domain.Coordinate, snapshot *domain.ImageBuffer) Document {
	return NewComposer(DefaultBranding()).Compose(rec, coord, snapshot)
}

// Compose lays out the extract. The owner block appears only when the record
// has an owner and the snapshot block only for a non-empty snapshot. The
// footer is always on the last page.
func (c *Composer) Compose(rec domain.CadastralRecord, coord domain.Coordinate, snapshot *domain.ImageBuffer) Document {
	now := domain.Now()
	l := &layout{pages: []Page{{}}}

	l.header(c.branding)
	l.table(SectionParcel, "IDENTIFICATION DE LA PARCELLE", parcelRows(rec))
	l.y += sectionGap
	l.table(SectionCoordinates, "COORDONNÉES GÉOGRAPHIQUES", coordinateRows(coord))
	if rec.HasOwner() {
		l.y += sectionGap
		l.owner(*rec.Owner)
	}
	if !snapshot.Empty() {
		l.snapshot(snapshot)
	}
	l.footer(c.branding, now.Format("02/01/2006"))

	return Document{
		ID:          uuid.NewString(),
		Title:       c.branding.Title,
		Filename:    Filename(rec, now.UnixMilli()),
		GeneratedAt: now,
		Pages:       l.pages,
	}
}

// Filename returns extrait_cadastral_<section>_<numero>_<unixmillis>.pdf.
func Filename(rec domain.CadastralRecord, unixMillis int64) string {
	return fmt.Sprintf("extrait_cadastral_%s_%s_%d.pdf", rec.Section, rec.ParcelNumber, unixMillis)
}

func parcelRows(rec domain.CadastralRecord) [][2]string {
	return [][2]string{
		{"Commune:", rec.Commune},
		{"Code commune:", rec.CommuneCode},
		{"Section cadastrale:", rec.Section},
		{"Numéro de parcelle:", rec.ParcelNumber},
		{"Référence cadastrale:", rec.Reference()},
		{"Surface cadastrale:", formatSurface(rec.SurfaceM2)},
		{"Nature de culture:", rec.NatureLabel},
	}
}

func coordinateRows(coord domain.Coordinate) [][2]string {
	return [][2]string{
		{"Système de référence:", "WGS84 (EPSG:4326)"},
		{"Latitude:", FormatDegrees(coord.Lat)},
		{"Longitude:", FormatDegrees(coord.Lon)},
		{"Précision:", "± 1 mètre"},
	}
}

// FormatDegrees renders an axis value with exactly six decimals and a degree
// sign.
func FormatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64) + "°"
}

// formatSurface groups thousands with spaces: 12345 -> "12 345 m²".
func formatSurface(m2 int) string {
	digits := strconv.Itoa(m2)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String() + " m²"
}

// layout tracks the cursor while blocks are placed.
type layout struct {
	pages []Page
	y     float64
}

func (l *layout) add(b Block) {
	p := &l.pages[len(l.pages)-1]
	p.Blocks = append(p.Blocks, b)
}

func (l *layout) newPage() {
	l.pages = append(l.pages, Page{})
	l.y = newPageTop
}

func (l *layout) text(section Section, x, y float64, s string, size float64, style string) {
	l.add(Block{Section: section, Kind: BlockText, X: x, Y: y, Text: s, FontSize: size, Style: style})
}

func (l *layout) header(b Branding) {
	l.add(Block{
		Section: SectionHeader, Kind: BlockText, X: PageWidth / 2, Y: titleY,
		Text: b.Title, FontSize: titleSize, Style: StyleBold, Align: AlignCenter,
	})
	ruleY := subtitleY + subtitleStep*float64(len(b.Subtitles))
	for i, s := range b.Subtitles {
		l.add(Block{
			Section: SectionHeader, Kind: BlockText, X: PageWidth / 2, Y: subtitleY + subtitleStep*float64(i),
			Text: s, FontSize: subtitleSize, Style: StyleRegular, Align: AlignCenter,
		})
	}
	l.add(Block{
		Section: SectionHeader, Kind: BlockRule, X: marginLeft, Y: ruleY,
		Width: PageWidth - 2*marginLeft,
	})
	l.y = ruleY + ruleToHeading
}

// table draws a heading followed by label/value rows; the cursor ends one
// row step below the last row.
func (l *layout) table(section Section, heading string, rows [][2]string) {
	l.text(section, marginLeft, l.y, heading, headingSize, StyleBold)
	l.y += headingToRow
	for _, r := range rows {
		l.text(section, marginLeft, l.y, r[0], bodySize, StyleBold)
		l.text(section, valueColumn, l.y, r[1], bodySize, StyleRegular)
		l.y += rowStep
	}
}

func (l *layout) owner(name string) {
	if l.y+headingToRow > bottomLimit {
		l.newPage()
	}
	l.text(SectionOwner, marginLeft, l.y, "PROPRIÉTAIRE", headingSize, StyleBold)
	l.y += headingToRow
	l.text(SectionOwner, marginLeft, l.y, name, bodySize, StyleRegular)
}

// snapshot places the map image 170 mm wide, starting a new page when the
// heading and image would run past the bottom limit. Images taller than a
// fresh page allows are shrunk to fit.
func (l *layout) snapshot(img *domain.ImageBuffer) {
	w := imageWidth
	h := float64(img.Height) * w / float64(img.Width)
	if maxH := bottomLimit - newPageTop - imageHeadingTo; h > maxH {
		w = w * maxH / h
		h = maxH
	}

	if l.y+imageGap+imageHeadingTo+h > bottomLimit {
		l.newPage()
	} else {
		l.y += imageGap
	}
	l.text(SectionSnapshot, marginLeft, l.y, "LOCALISATION CARTOGRAPHIQUE", headingSize, StyleBold)
	l.y += imageHeadingTo
	l.add(Block{Section: SectionSnapshot, Kind: BlockImage, X: marginLeft, Y: l.y, Width: w, Height: h, Image: img})
	l.y += h
}

func (l *layout) footer(b Branding, date string) {
	lines := []string{b.Issuer, "Date d'édition: " + date, b.Disclaimer}
	for i, s := range lines {
		l.text(SectionFooter, marginLeft, footerTop+footerStep*float64(i), s, footerSize, StyleItalic)
	}
}
