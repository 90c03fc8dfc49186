package images

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// AvatarSize is the fixed square dimension every stored avatar gets.
const AvatarSize = 250

// NormalizeAvatar decodes raw upload bytes, scales and center-crops to
// exactly AvatarSize×AvatarSize and re-encodes as PNG. Any undecodable
// input is an error for the caller to classify, never a panic.
func NormalizeAvatar(raw []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(raw))

	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	resized := imaging.Fill(img, AvatarSize, AvatarSize, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer

	if err := imaging.Encode(&buf, resized, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}

	return buf.Bytes(), nil
}
