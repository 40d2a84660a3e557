// ABOUTME: Pluggable snapshot payload codecs: identity and zstd
// ABOUTME: Zstd wraps klauspost/compress with shared encoder/decoder instances

package compress

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Codec transforms serialized snapshot bytes for storage.
type Codec interface {
	// Name identifies the codec in persisted records.
	Name() string
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}

// Identity returns bytes unchanged. It is the default codec.
type Identity struct{}

// Name returns "identity".
func (Identity) Name() string { return "identity" }

// Compress returns a copy of src.
func (Identity) Compress(src []byte) ([]byte, error) {
	return append([]byte(nil), src...), nil
}

// Decompress returns a copy of src.
func (Identity) Decompress(src []byte) ([]byte, error) {
	return append([]byte(nil), src...), nil
}

// Zstd compresses with Zstandard. Safe for concurrent use.
type Zstd struct {
	level zstd.EncoderLevel

	once    sync.Once
	enc     *zstd.Encoder
	dec     *zstd.Decoder
	initErr error
}

// NewZstd creates a zstd codec at the given level.
// Use zstd.SpeedFastest for interactive editing where latency matters most.
func NewZstd(level zstd.EncoderLevel) *Zstd {
	return &Zstd{level: level}
}

// Name returns "zstd".
func (z *Zstd) Name() string { return "zstd" }

func (z *Zstd) init() error {
	z.once.Do(func() {
		level := z.level
		if level == 0 {
			level = zstd.SpeedDefault
		}
		z.enc, z.initErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		if z.initErr != nil {
			z.initErr = fmt.Errorf("creating zstd encoder: %w", z.initErr)
			return
		}
		z.dec, z.initErr = zstd.NewReader(nil)
		if z.initErr != nil {
			z.initErr = fmt.Errorf("creating zstd decoder: %w", z.initErr)
		}
	})
	return z.initErr
}

// Compress encodes src as a single zstd frame.
func (z *Zstd) Compress(src []byte) ([]byte, error) {
	if err := z.init(); err != nil {
		return nil, err
	}
	return z.enc.EncodeAll(src, make([]byte, 0, len(src)/2)), nil
}

// Decompress decodes a zstd frame produced by Compress.
func (z *Zstd) Decompress(src []byte) ([]byte, error) {
	if err := z.init(); err != nil {
		return nil, err
	}
	out, err := z.dec.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	return out, nil
}

// ByName returns the codec that writes records under name. Loaders use it to
// read payloads packed by a differently configured engine.
func ByName(name string) (Codec, error) {
	switch name {
	case "", "identity":
		return Identity{}, nil
	case "zstd":
		return NewZstd(0), nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}
