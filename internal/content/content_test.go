package content

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"golang.org/x/image/bmp"
)

func dataURI(t *testing.T, mime string, encode func(*bytes.Buffer, image.Image) error, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := encode(&buf, img); err != nil {
		t.Fatalf("encode %s: %v", mime, err)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func encodePNG(buf *bytes.Buffer, img image.Image) error { return png.Encode(buf, img) }
func encodeBMP(buf *bytes.Buffer, img image.Image) error { return bmp.Encode(buf, img) }

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []string
		notWant []string
	}{
		{"line breaks", "first\nsecond", []string{"first<br", "second"}, nil},
		{"emphasis", "**bold**", []string{"<strong>bold</strong>"}, nil},
		{"raw html dropped", "a <script>alert(1)</script> b", []string{"a "}, []string{"<script>"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.in)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("Render(%q) = %q, missing %q", tt.in, got, w)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(got, nw) {
					t.Errorf("Render(%q) = %q, should not contain %q", tt.in, got, nw)
				}
			}
		})
	}
}

func TestParseDataURI(t *testing.T) {
	d, err := ParseDataURI("data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("hi")))
	if err != nil {
		t.Fatalf("ParseDataURI: %v", err)
	}
	if d.MIME != "text/plain" || string(d.Data) != "hi" {
		t.Errorf("got %+v", d)
	}

	for _, bad := range []string{"hello", "data:image/png,abc", "data:image/png;base64"} {
		if _, err := ParseDataURI(bad); !errors.Is(err, ErrNotDataURI) {
			t.Errorf("ParseDataURI(%q) error = %v, want ErrNotDataURI", bad, err)
		}
	}
	if _, err := ParseDataURI("data:image/png;base64,!!!"); err == nil {
		t.Error("expected a decode error")
	}
}

func TestIsDataURI(t *testing.T) {
	if !IsDataURI("data:image/png;base64,AAAA") {
		t.Error("image data URI not recognized")
	}
	if IsDataURI("data:text/plain;base64,AAAA") || IsDataURI(42) {
		t.Error("non-image values recognized")
	}
}

func TestImageInfo(t *testing.T) {
	tests := []struct {
		mime   string
		encode func(*bytes.Buffer, image.Image) error
		format string
	}{
		{"image/png", encodePNG, "png"},
		{"image/bmp", encodeBMP, "bmp"},
	}
	for _, tt := range tests {
		info, err := ImageInfo(dataURI(t, tt.mime, tt.encode, 4, 3))
		if err != nil {
			t.Fatalf("ImageInfo(%s): %v", tt.mime, err)
		}
		if info != (Info{Format: tt.format, Width: 4, Height: 3}) {
			t.Errorf("ImageInfo(%s) = %+v", tt.mime, info)
		}
	}

	notImage := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("not an image"))
	if _, err := ImageInfo(notImage); err == nil {
		t.Error("expected an error for a non-image payload")
	}
}

func TestThumbnail(t *testing.T) {
	big := dataURI(t, "image/bmp", encodeBMP, 200, 100)
	thumb, err := Thumbnail(big, 50)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	info, err := ImageInfo(thumb)
	if err != nil {
		t.Fatalf("ImageInfo: %v", err)
	}
	if info.Format != "png" || info.Width != 50 || info.Height != 25 {
		t.Errorf("thumbnail = %+v, want 50x25 png", info)
	}

	small := dataURI(t, "image/png", encodePNG, 10, 10)
	if got, err := Thumbnail(small, 50); err != nil || got != small {
		t.Errorf("small image should be unchanged, err=%v", err)
	}
}
