package service

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymfix/internal/config"
)

func newTestPhotoService(t *testing.T) *PhotoService {
	t.Helper()
	return NewPhotoService(&config.Config{UploadDir: t.TempDir()})
}

func testPNGBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPhotoServiceUpload(t *testing.T) {
	svc := newTestPhotoService(t)
	content := testPNGBytes(t)

	url, err := svc.Upload(UploadPhotoInput{
		UserID:   1,
		Kind:     PhotoKindFaultReport,
		Filename: "broken-cable.png",
		Content:  content,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/media/photos/fault-reports/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	name := filepath.Base(url)
	path, err := svc.ResolveForServing(PhotoKindFaultReport, name)
	require.NoError(t, err)
	stored, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, stored)
}

func TestPhotoServiceThumbnail(t *testing.T) {
	svc := newTestPhotoService(t)

	url, err := svc.Upload(UploadPhotoInput{
		UserID:  1,
		Kind:    PhotoKindFaultReport,
		Content: testPNGBytes(t),
	})
	require.NoError(t, err)

	thumbURL := svc.ThumbnailURL(url)
	require.NotEmpty(t, thumbURL)
	assert.True(t, strings.HasSuffix(thumbURL, "_thumb.webp"))

	path, err := svc.ResolveForServing(PhotoKindFaultReport, filepath.Base(thumbURL))
	require.NoError(t, err)
	stored, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, stored)

	assert.Empty(t, svc.ThumbnailURL("https://elsewhere.example/cat.png"))
}

func TestBuildThumbnailDownscales(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1200, 800))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	thumb, err := buildThumbnail(buf.Bytes())
	require.NoError(t, err)

	decoded, err := webp.Decode(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, thumbMaxSize, decoded.Bounds().Dx())
	assert.Less(t, decoded.Bounds().Dy(), thumbMaxSize)
}

func TestPhotoServiceUploadDeduplicates(t *testing.T) {
	svc := newTestPhotoService(t)
	content := testPNGBytes(t)

	first, err := svc.Upload(UploadPhotoInput{UserID: 7, Kind: PhotoKindConfirmation, Content: content})
	require.NoError(t, err)
	second, err := svc.Upload(UploadPhotoInput{UserID: 7, Kind: PhotoKindConfirmation, Content: content})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPhotoServiceUploadRejections(t *testing.T) {
	svc := newTestPhotoService(t)

	tests := []struct {
		name  string
		input UploadPhotoInput
	}{
		{"missing user", UploadPhotoInput{Kind: PhotoKindFaultReport, Content: testPNGBytes(t)}},
		{"unknown kind", UploadPhotoInput{UserID: 1, Kind: "avatars", Content: testPNGBytes(t)}},
		{"empty content", UploadPhotoInput{UserID: 1, Kind: PhotoKindFaultReport}},
		{"not an image", UploadPhotoInput{UserID: 1, Kind: PhotoKindFaultReport, Content: []byte("plain text, not an image")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(tt.input)
			assertValidationError(t, err)
		})
	}
}

func TestPhotoServiceUploadTooLarge(t *testing.T) {
	svc := newTestPhotoService(t)
	svc.maxUploadSizeBytes = 16

	_, err := svc.Upload(UploadPhotoInput{UserID: 1, Kind: PhotoKindFaultReport, Content: testPNGBytes(t)})
	assertValidationError(t, err)
}

func TestPhotoServiceResolveForServing(t *testing.T) {
	svc := newTestPhotoService(t)

	t.Run("rejects traversal", func(t *testing.T) {
		_, err := svc.ResolveForServing(PhotoKindFaultReport, "../../etc/passwd")
		assertValidationError(t, err)
	})

	t.Run("rejects non-hash names", func(t *testing.T) {
		_, err := svc.ResolveForServing(PhotoKindFaultReport, "photo.png")
		assertValidationError(t, err)
	})

	t.Run("missing photo is not found", func(t *testing.T) {
		name := strings.Repeat("ab", 32) + ".png"
		_, err := svc.ResolveForServing(PhotoKindFaultReport, name)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})
}
