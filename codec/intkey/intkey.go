// Package intkey is a worked example KeyCodec/kv.Key over a fixed
// 8-byte signed integer key, the simplest concrete collaborator the
// tree core can be exercised against.
package intkey

import (
	"encoding/binary"
	"fmt"
	"io"

	"mvtree/internal/kv"
)

// Key is a signed 64-bit integer key.
type Key int64

// Compare implements kv.Key.
func (k Key) Compare(other kv.Key) int {
	o, ok := other.(Key)
	if !ok {
		panic(fmt.Sprintf("intkey.Key.Compare: incompatible key type %T", other))
	}
	switch {
	case k < o:
		return -1
	case k > o:
		return 1
	default:
		return 0
	}
}

// Codec encodes Key as a fixed 8-byte big-endian integer.
type Codec struct{}

// MaxSize implements kv.KeyCodec.
func (Codec) MaxSize() int { return 8 }

// Encode implements kv.KeyCodec.
func (Codec) Encode(w io.Writer, k kv.Key) error {
	return binary.Write(w, binary.BigEndian, int64(k.(Key)))
}

// Decode implements kv.KeyCodec.
func (Codec) Decode(r io.Reader) (kv.Key, error) {
	var v int64
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return nil, err
	}
	return Key(v), nil
}
