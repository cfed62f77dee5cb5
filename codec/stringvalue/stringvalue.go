// Package stringvalue is a worked example ValueCodec/kv.Value over a
// length-prefixed UTF-8 string, paired with intkey in tests and in
// cmd/mvtreectl's demo data.
package stringvalue

import (
	"encoding/binary"
	"fmt"
	"io"

	"mvtree/internal/kv"
)

// MaxLen bounds the serialized payload so NodeCodec can derive a
// fixed per-entry page budget; longer values are rejected at Encode.
const MaxLen = 16

// Value is a plain string payload.
type Value string

// Size implements kv.Value: 4-byte length prefix + UTF-8 bytes.
func (v Value) Size() int { return 4 + len(v) }

// Codec encodes Value as [uint32 length][bytes], capped at MaxLen.
type Codec struct{}

// MaxSize implements kv.ValueCodec.
func (Codec) MaxSize() int { return 4 + MaxLen }

// Encode implements kv.ValueCodec.
func (Codec) Encode(w io.Writer, v kv.Value) error {
	s, ok := v.(Value)
	if !ok {
		return fmt.Errorf("stringvalue.Codec.Encode: incompatible value type %T", v)
	}
	if len(s) > MaxLen {
		return fmt.Errorf("stringvalue.Codec.Encode: value length %d exceeds max %d", len(s), MaxLen)
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, string(s))
	return err
}

// Decode implements kv.ValueCodec.
func (Codec) Decode(r io.Reader) (kv.Value, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return Value(buf), nil
}
