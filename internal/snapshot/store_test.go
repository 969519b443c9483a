package snapshot

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/cadastre-extract-service/internal/domain"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

func TestStore_CaptureBeforePut(t *testing.T) {
	_, err := NewStore(1 << 20).Capture(context.Background(), 1)
	require.ErrorIs(t, err, ErrNoSnapshot)
}

func TestStore_PutAndCapture(t *testing.T) {
	s := NewStore(1 << 20)
	data := encodePNG(t, 40, 20)

	meta, err := s.Put(data)
	require.NoError(t, err)
	assert.Equal(t, domain.ImagePNG, meta.Format)
	assert.Equal(t, 40, meta.Width)
	assert.Equal(t, 20, meta.Height)

	got, err := s.Capture(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, data, got.Data)
	assert.False(t, got.Empty())
}

func TestStore_PutJPEG(t *testing.T) {
	meta, err := NewStore(1 << 20).Put(encodeJPEG(t, 16, 8))
	require.NoError(t, err)
	assert.Equal(t, domain.ImageJPEG, meta.Format)
}

func TestStore_RejectsOversized(t *testing.T) {
	data := encodePNG(t, 64, 64)
	_, err := NewStore(int64(len(data) - 1)).Put(data)
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestStore_RejectsGarbage(t *testing.T) {
	_, err := NewStore(1 << 20).Put([]byte("not an image"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestStore_RejectsTruncatedPNG(t *testing.T) {
	data := encodePNG(t, 64, 64)
	require.Greater(t, len(data), 60)
	truncated := data[:60]

	_, _, err := image.DecodeConfig(bytes.NewReader(truncated))
	require.NoError(t, err, "header alone still parses")

	s := NewStore(1 << 20)
	_, err = s.Put(truncated)
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = s.Capture(context.Background(), 1)
	require.ErrorIs(t, err, ErrNoSnapshot)
}

func TestStore_CaptureScaled(t *testing.T) {
	tests := []struct {
		name   string
		data   func(*testing.T) []byte
		scale  float64
		wantW  int
		wantH  int
		format domain.ImageFormat
	}{
		{"png double", func(t *testing.T) []byte { return encodePNG(t, 40, 20) }, 2, 80, 40, domain.ImagePNG},
		{"png half", func(t *testing.T) []byte { return encodePNG(t, 40, 20) }, 0.5, 20, 10, domain.ImagePNG},
		{"jpeg double", func(t *testing.T) []byte { return encodeJPEG(t, 10, 10) }, 2, 20, 20, domain.ImageJPEG},
		{"never below one pixel", func(t *testing.T) []byte { return encodePNG(t, 2, 2) }, 0.1, 1, 1, domain.ImagePNG},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(1 << 20)
			_, err := s.Put(tt.data(t))
			require.NoError(t, err)

			got, err := s.Capture(context.Background(), tt.scale)
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, got.Width)
			assert.Equal(t, tt.wantH, got.Height)
			assert.Equal(t, tt.format, got.Format)

			cfg, _, err := image.DecodeConfig(bytes.NewReader(got.Data))
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, cfg.Width)
			assert.Equal(t, tt.wantH, cfg.Height)
		})
	}
}

func TestStore_Clear(t *testing.T) {
	s := NewStore(1 << 20)
	_, err := s.Put(encodePNG(t, 4, 4))
	require.NoError(t, err)
	s.Clear()

	_, err = s.Capture(context.Background(), 1)
	require.ErrorIs(t, err, ErrNoSnapshot)
}

func TestStore_CaptureCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewStore(1<<20).Capture(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
}
