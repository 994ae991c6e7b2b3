// Package content formats question text and image cells for display.
package content

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrNotDataURI is returned for values that are not base64 data URIs.
var ErrNotDataURI = errors.New("not a base64 data URI")

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// Render converts question text to HTML. Line breaks are kept and raw HTML
// in the source is dropped.
func Render(src string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render content: %w", err)
	}
	return buf.String(), nil
}

// DataURI is a decoded data:<mime>;base64,<payload> value.
type DataURI struct {
	MIME string
	Data []byte
}

// IsDataURI reports whether v looks like an image data URI.
func IsDataURI(v any) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(s, "data:image/")
}

// ParseDataURI decodes a base64 data URI.
func ParseDataURI(s string) (*DataURI, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return nil, ErrNotDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, ErrNotDataURI
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return nil, ErrNotDataURI
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &DataURI{MIME: mime, Data: data}, nil
}

// Info describes an embedded image.
type Info struct {
	Format string
	Width  int
	Height int
}

// ImageInfo reads the format and dimensions of an image data URI without
// decoding the pixels.
func ImageInfo(s string) (Info, error) {
	d, err := ParseDataURI(s)
	if err != nil {
		return Info{}, err
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(d.Data))
	if err != nil {
		return Info{}, fmt.Errorf("image %s: %w", d.MIME, err)
	}
	return Info{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// Thumbnail scales an image data URI down so neither side exceeds limit and
// returns it as a PNG data URI. Images already small enough are returned
// unchanged.
func Thumbnail(s string, limit int) (string, error) {
	d, err := ParseDataURI(s)
	if err != nil {
		return "", err
	}
	img, _, err := image.Decode(bytes.NewReader(d.Data))
	if err != nil {
		return "", fmt.Errorf("image %s: %w", d.MIME, err)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if limit < 1 || (w <= limit && h <= limit) {
		return s, nil
	}
	if w >= h {
		h = max(1, h*limit/w)
		w = limit
	} else {
		w = max(1, w*limit/h)
		h = limit
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
