// Package snapshot holds the latest map view uploaded by a client and serves
// it to the report exporter as a domain.SnapshotProvider.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"
	"sync"

	"golang.org/x/image/draw"

	"github.com/couchcryptid/cadastre-extract-service/internal/domain"
)

var (
	// ErrNoSnapshot is returned by Capture before any view was uploaded.
	ErrNoSnapshot = errors.New("no map snapshot available")
	// ErrTooLarge is returned by Put when the upload exceeds the byte limit.
	ErrTooLarge = errors.New("snapshot exceeds size limit")
	// ErrUnsupportedFormat is returned by Put for anything but PNG or JPEG.
	ErrUnsupportedFormat = errors.New("snapshot must be PNG or JPEG")
)

const jpegQuality = 90

// Store keeps the most recent snapshot for one session.
type Store struct {
	maxBytes int64

	mu      sync.RWMutex
	current *domain.ImageBuffer
}

// NewStore creates a Store rejecting uploads larger than maxBytes.
func NewStore(maxBytes int64) *Store {
	return &Store{maxBytes: maxBytes}
}

// Put validates and stores an encoded image, replacing any previous one.
func (s *Store) Put(data []byte) (domain.ImageBuffer, error) {
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return domain.ImageBuffer{}, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(data), s.maxBytes)
	}
	// A full decode rejects uploads whose header is valid but whose pixel
	// data is cut off.
	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.ImageBuffer{}, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	format, err := formatOf(name)
	if err != nil {
		return domain.ImageBuffer{}, err
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return domain.ImageBuffer{}, fmt.Errorf("%w: empty image", ErrUnsupportedFormat)
	}

	buf := domain.ImageBuffer{
		Data:   bytes.Clone(data),
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}
	s.mu.Lock()
	s.current = &buf
	s.mu.Unlock()
	return buf, nil
}

// Clear drops the stored snapshot.
func (s *Store) Clear() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

// Capture returns the stored view. A scale other than 1 yields a
// nearest-neighbour resized copy in the same format.
func (s *Store) Capture(ctx context.Context, scale float64) (domain.ImageBuffer, error) {
	if err := ctx.Err(); err != nil {
		return domain.ImageBuffer{}, err
	}
	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()
	if cur == nil {
		return domain.ImageBuffer{}, ErrNoSnapshot
	}
	if scale <= 0 || scale == 1 {
		out := *cur
		out.Data = bytes.Clone(cur.Data)
		return out, nil
	}
	return resize(*cur, scale)
}

func resize(buf domain.ImageBuffer, scale float64) (domain.ImageBuffer, error) {
	src, _, err := image.Decode(bytes.NewReader(buf.Data))
	if err != nil {
		return domain.ImageBuffer{}, fmt.Errorf("decode snapshot: %w", err)
	}

	w := max(1, int(math.Round(float64(buf.Width)*scale)))
	h := max(1, int(math.Round(float64(buf.Height)*scale)))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var out bytes.Buffer
	switch buf.Format {
	case domain.ImageJPEG:
		err = jpeg.Encode(&out, dst, &jpeg.Options{Quality: jpegQuality})
	default:
		err = png.Encode(&out, dst)
	}
	if err != nil {
		return domain.ImageBuffer{}, fmt.Errorf("encode snapshot: %w", err)
	}
	return domain.ImageBuffer{Data: out.Bytes(), Format: buf.Format, Width: w, Height: h}, nil
}

func formatOf(name string) (domain.ImageFormat, error) {
	switch name {
	case "png":
		return domain.ImagePNG, nil
	case "jpeg":
		return domain.ImageJPEG, nil
	default:
		return "", fmt.Errorf("%w: got %s", ErrUnsupportedFormat, name)
	}
}
