package domain

import "context"

// ImageFormat names the encoding of an ImageBuffer.
type ImageFormat string

const (
	ImageJPEG ImageFormat = "JPEG"
	ImagePNG  ImageFormat = "PNG"
)

// ImageBuffer is an encoded raster image with its pixel dimensions.
type ImageBuffer struct {
	Data   []byte
	Format ImageFormat
	Width  int
	Height int
}

// Empty reports whether the buffer carries no drawable image.
func (b *ImageBuffer) Empty() bool {
	return b == nil || len(b.Data) == 0 || b.Width <= 0 || b.Height <= 0
}

// SnapshotProvider captures the current map view as a raster image.
type SnapshotProvider interface {
	Capture(ctx context.Context, scale float64) (ImageBuffer, error)
}
