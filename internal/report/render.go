package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/couchcryptid/cadastre-extract-service/internal/domain"
)

// ErrRender wraps every PDF serialization failure.
var ErrRender = errors.New("render pdf")

const fontFamily = "Helvetica"

// RenderPDF serializes doc and writes it to w. Nothing is written unless the
// whole document rendered successfully.
func RenderPDF(doc Document, w io.Writer) error {
	data, err := renderBytes(doc)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// renderBytes builds the PDF in memory. fpdf panics on some malformed
// images; the panic is reported as ErrRender.
func renderBytes(doc Document) (_ []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrRender, r)
		}
	}()

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("cadastre-extract-service", true)
	pdf.SetCreationDate(doc.GeneratedAt)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for i, page := range doc.Pages {
		pdf.AddPage()
		for j, b := range page.Blocks {
			switch b.Kind {
			case BlockText:
				pdf.SetFont(fontFamily, b.Style, b.FontSize)
				text := tr(b.Text)
				x := b.X
				if b.Align == AlignCenter {
					x -= pdf.GetStringWidth(text) / 2
				}
				pdf.Text(x, b.Y, text)
			case BlockRule:
				pdf.SetLineWidth(0.5)
				pdf.Line(b.X, b.Y, b.X+b.Width, b.Y)
			case BlockImage:
				drawImage(pdf, fmt.Sprintf("snapshot-%d-%d", i, j), b)
			}
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	return buf.Bytes(), nil
}

func drawImage(pdf *fpdf.Fpdf, name string, b Block) {
	if b.Image.Empty() {
		return
	}
	opts := fpdf.ImageOptions{ImageType: imageType(b.Image.Format)}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(b.Image.Data))
	pdf.ImageOptions(name, b.X, b.Y, b.Width, b.Height, false, opts, 0, "")
}

func imageType(f domain.ImageFormat) string {
	if f == domain.ImagePNG {
		return "PNG"
	}
	return "JPG"
}
