package images_test

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/userhub/userhub/internal/images"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))

	var buf bytes.Buffer

	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}

	return buf.Bytes()
}

func TestNormalizeAvatar(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
	}{
		{name: "landscape", width: 800, height: 450},
		{name: "portrait", width: 300, height: 900},
		{name: "tiny", width: 10, height: 10},
		{name: "already_square", width: 250, height: 250},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			out, err := images.NormalizeAvatar(encodeJPEG(t, tt.width, tt.height))
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}

			img, err := png.Decode(bytes.NewReader(out))
			if err != nil {
				t.Fatalf("output is not a PNG: %v", err)
			}

			b := img.Bounds()
			if b.Dx() != images.AvatarSize || b.Dy() != images.AvatarSize {
				t.Fatalf("got %dx%d, want %dx%d", b.Dx(), b.Dy(), images.AvatarSize, images.AvatarSize)
			}
		})
	}
}

func TestNormalizeAvatarRejectsGarbage(t *testing.T) {
	if _, err := images.NormalizeAvatar([]byte("not an image at all")); err == nil {
		t.Fatalf("expected an error for undecodable input")
	}
}
