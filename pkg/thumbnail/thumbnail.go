// ABOUTME: Thumbnail generators invoked on the snapshot interval cadence
// ABOUTME: None is the placeholder; Image downsizes with CatmullRom and returns a PNG data URI

package thumbnail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	goimage "image"
	"image/png"

	"golang.org/x/image/draw"
)

// Generator turns a snapshot payload into a preview handle.
// An empty handle means no preview.
type Generator[T any] func(data T) (string, error)

// None returns the no-op placeholder generator.
func None[T any]() Generator[T] {
	return func(T) (string, error) { return "", nil }
}

// Image returns a generator for image snapshots. The preview fits within
// maxDim x maxDim pixels and is encoded as a "data:image/png;base64," URI.
func Image(maxDim int) Generator[goimage.Image] {
	return func(img goimage.Image) (string, error) {
		if img == nil {
			return "", nil
		}
		b := img.Bounds()
		if b.Dx() == 0 || b.Dy() == 0 {
			return "", fmt.Errorf("empty image bounds %v", b)
		}
		w, h := fitDimensions(b.Dx(), b.Dy(), maxDim)
		dst := goimage.NewRGBA(goimage.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

		var buf bytes.Buffer
		if err := png.Encode(&buf, dst); err != nil {
			return "", fmt.Errorf("encoding PNG: %w", err)
		}
		return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
	}
}

// fitDimensions calculates new dimensions that fit within maxDim while preserving aspect ratio.
func fitDimensions(w, h, maxDim int) (int, int) {
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return w, h
	}
	if w >= h {
		return maxDim, max(1, h*maxDim/w)
	}
	return max(1, w*maxDim/h), maxDim
}
