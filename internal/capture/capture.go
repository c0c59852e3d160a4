// Package capture saves diagnostic page thumbnails when a run aborts.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	"github.com/nfnt/resize"
)

// DefaultMaxWidth is the thumbnail width when Options.MaxWidth is zero.
const DefaultMaxWidth = 800

const borderWidth = 4

// Border colors by run outcome.
var (
	FailureColor = color.RGBA{220, 53, 69, 255}
	SuccessColor = color.RGBA{40, 167, 69, 255}
)

// Screenshotter is anything that can capture its viewport as PNG.
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// Options configures thumbnail generation
type Options struct {
	MaxWidth uint
	Border   color.Color // no border when nil
}

// Thumbnail decodes a PNG screenshot and scales it down to MaxWidth keeping
// the aspect ratio. Images narrower than MaxWidth are not upscaled.
func Thumbnail(data []byte, opts Options) (image.Image, error) {
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot: %w", err)
	}

	maxWidth := opts.MaxWidth
	if maxWidth == 0 {
		maxWidth = DefaultMaxWidth
	}

	bounds := src.Bounds()
	img := src
	if uint(bounds.Dx()) > maxWidth {
		// Calculate height maintaining aspect ratio
		aspectRatio := float64(bounds.Dy()) / float64(bounds.Dx())
		outputHeight := uint(float64(maxWidth) * aspectRatio)
		img = resize.Resize(maxWidth, outputHeight, src, resize.Lanczos3)
	}

	if opts.Border == nil {
		return img, nil
	}
	return withBorder(img, opts.Border), nil
}

// withBorder copies img onto an RGBA canvas and paints a frame inside its
// edges.
func withBorder(img image.Image, c color.Color) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)

	fill := image.NewUniform(c)
	w := borderWidth
	for _, r := range []image.Rectangle{
		image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+w),
		image.Rect(b.Min.X, b.Max.Y-w, b.Max.X, b.Max.Y),
		image.Rect(b.Min.X, b.Min.Y, b.Min.X+w, b.Max.Y),
		image.Rect(b.Max.X-w, b.Min.Y, b.Max.X, b.Max.Y),
	} {
		draw.Draw(out, r.Intersect(b), fill, image.Point{}, draw.Src)
	}
	return out
}

// Save writes img as PNG and returns the file size.
func Save(path string, img image.Image) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return 0, err
	}

	// Get file size
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Page screenshots s and saves a thumbnail to path.
func Page(ctx context.Context, s Screenshotter, path string, opts Options) (int64, error) {
	data, err := s.Screenshot(ctx)
	if err != nil {
		return 0, err
	}
	img, err := Thumbnail(data, opts)
	if err != nil {
		return 0, err
	}
	return Save(path, img)
}
