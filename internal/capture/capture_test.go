package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeShot struct {
	data []byte
	err  error
}

func (f fakeShot) Screenshot(context.Context) ([]byte, error) { return f.data, f.err }

func TestThumbnail_Downscales(t *testing.T) {
	img, err := Thumbnail(encodePNG(t, 1600, 1000), Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxWidth, img.Bounds().Dx())
	assert.Equal(t, 500, img.Bounds().Dy())
}

func TestThumbnail_NoUpscale(t *testing.T) {
	img, err := Thumbnail(encodePNG(t, 300, 200), Options{MaxWidth: 640})
	require.NoError(t, err)
	assert.Equal(t, 300, img.Bounds().Dx())
}

func TestThumbnail_Border(t *testing.T) {
	img, err := Thumbnail(encodePNG(t, 100, 50), Options{Border: FailureColor})
	require.NoError(t, err)

	r, g, b, _ := img.At(0, 0).RGBA()
	assert.Equal(t, [3]uint32{220, 53, 69}, [3]uint32{r >> 8, g >> 8, b >> 8})
	r, g, b, _ = img.At(50, 25).RGBA()
	assert.Equal(t, [3]uint32{255, 255, 255}, [3]uint32{r >> 8, g >> 8, b >> 8})
}

func TestThumbnail_InvalidData(t *testing.T) {
	_, err := Thumbnail([]byte("not a png"), Options{})
	assert.ErrorContains(t, err, "decode")
}

func TestPage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failure.png")
	size, err := Page(context.Background(), fakeShot{data: encodePNG(t, 200, 100)}, path, Options{Border: SuccessColor})
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), size)

	_, err = Page(context.Background(), fakeShot{err: errors.New("tab closed")}, path, Options{})
	assert.ErrorContains(t, err, "tab closed")
}
