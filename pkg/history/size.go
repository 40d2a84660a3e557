// ABOUTME: Payload encoding for size estimation and optional compression
// ABOUTME: Memory usage is the JSON length, or the packed length when compressed

package history

import (
	"encoding/json"
	"fmt"

	"github.com/mauromedda/canvas-history-go/internal/log"
)

// EstimateSize returns the JSON-encoded length of data, or 0 when data is not
// JSON-serializable.
func EstimateSize[T any](data T) int64 {
	raw, err := json.Marshal(data)
	if err != nil {
		return 0
	}
	return int64(len(raw))
}

// encodeData prepares a payload for storage. With compression enabled the
// payload is returned packed and the stored value is the zero T.
func (e *Engine[T]) encodeData(data T) (stored T, packed []byte, size int64, err error) {
	raw, err := json.Marshal(data)
	if !e.opts.Compression {
		if err != nil {
			log.Debug("history: payload not JSON-serializable, size unknown: %v", err)
			return data, nil, 0, nil
		}
		return data, nil, int64(len(raw)), nil
	}
	if err != nil {
		return stored, nil, 0, fmt.Errorf("encoding snapshot: %w", err)
	}
	packed, err = e.opts.Codec.Compress(raw)
	if err != nil {
		return stored, nil, 0, fmt.Errorf("compressing snapshot: %w", err)
	}
	// A nil packed slice means "not compressed" to the rest of the engine.
	if packed == nil {
		packed = []byte{}
	}
	return stored, packed, int64(len(packed)), nil
}

func (e *Engine[T]) decodeData(packed []byte) (T, error) {
	var data T
	raw, err := e.opts.Codec.Decompress(packed)
	if err != nil {
		return data, err
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("decoding snapshot: %w", err)
	}
	return data, nil
}
