// ABOUTME: Tests for snapshot payload codecs
// ABOUTME: Verifies zstd shrinks repetitive payloads and rejects corrupt input

package compress

import (
	"bytes"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestIdentity_CopiesInput(t *testing.T) {
	t.Parallel()

	src := []byte(`{"layers":[]}`)
	out, err := Identity{}.Compress(src)
	if err != nil {
		t.Fatal(err)
	}
	out[0] = 'X'
	if src[0] != '{' {
		t.Error("Compress must not alias the input slice")
	}
}

func TestZstd_CompressDecompress(t *testing.T) {
	t.Parallel()

	z := NewZstd(zstd.SpeedFastest)
	src := []byte(strings.Repeat(`{"x":10,"y":20,"fill":"#ff0000"},`, 200))

	packed, err := z.Compress(src)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if len(packed) >= len(src) {
		t.Errorf("packed %d bytes, expected fewer than %d", len(packed), len(src))
	}

	out, err := z.Decompress(packed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(out, src) {
		t.Error("decompressed bytes differ from source")
	}
}

func TestZstd_DecompressCorrupt(t *testing.T) {
	t.Parallel()

	z := NewZstd(0)
	if _, err := z.Decompress([]byte("not a zstd frame")); err == nil {
		t.Error("expected error for corrupt input")
	}
}

func TestNames(t *testing.T) {
	t.Parallel()

	if (Identity{}).Name() != "identity" {
		t.Error("identity name")
	}
	if NewZstd(0).Name() != "zstd" {
		t.Error("zstd name")
	}
}

func TestByName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"", "identity", false},
		{"identity", "identity", false},
		{"zstd", "zstd", false},
		{"brotli", "", true},
	}
	for _, tt := range tests {
		c, err := ByName(tt.name)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ByName(%q) succeeded, want error", tt.name)
			}
			continue
		}
		if err != nil || c.Name() != tt.want {
			t.Errorf("ByName(%q) = %v, %v; want %s", tt.name, c, err, tt.want)
		}
	}
}
