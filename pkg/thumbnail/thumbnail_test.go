// ABOUTME: Tests for thumbnail generators
// ABOUTME: Decodes the produced data URI and checks preview dimensions

package thumbnail

import (
	"bytes"
	"encoding/base64"
	goimage "image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

func TestNone(t *testing.T) {
	t.Parallel()

	h, err := None[string]()("anything")
	if err != nil || h != "" {
		t.Errorf("None() = (%q, %v), want empty handle", h, err)
	}
}

func TestImage_ScalesToFit(t *testing.T) {
	t.Parallel()

	src := goimage.NewRGBA(goimage.Rect(0, 0, 400, 200))
	for x := range 400 {
		src.Set(x, 10, color.RGBA{R: 255, A: 255})
	}

	handle, err := Image(64)(src)
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(handle, prefix) {
		t.Fatalf("handle %q lacks data URI prefix", handle[:min(len(handle), 32)])
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(handle, prefix))
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Bounds().Size(); got.X != 64 || got.Y != 32 {
		t.Errorf("preview size = %v, want 64x32", got)
	}
}

func TestImage_Nil(t *testing.T) {
	t.Parallel()

	h, err := Image(32)(nil)
	if err != nil || h != "" {
		t.Errorf("nil image: got (%q, %v)", h, err)
	}
}

func TestFitDimensions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{100, 50, 200, 100, 50},
		{400, 200, 100, 100, 50},
		{200, 400, 100, 50, 100},
		{1000, 1, 10, 10, 1},
		{30, 30, 0, 30, 30},
	}
	for _, tt := range tests {
		w, h := fitDimensions(tt.w, tt.h, tt.max)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("fitDimensions(%d,%d,%d) = %dx%d, want %dx%d", tt.w, tt.h, tt.max, w, h, tt.wantW, tt.wantH)
		}
	}
}
