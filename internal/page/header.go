package page

import (
	"bytes"
	"encoding/binary"
)

// baseHeaderSize is the fixed-width framing every encoded page carries
// ahead of its entries. In MV mode NewCodec additionally reserves room
// for MaxPredecessors predecessor entries in the inner-node budget.
const baseHeaderSize = 1 /*kind*/ + 2 /*level*/ + 2 /*count*/ + 8 /*next*/ + 2 /*predCount*/

// Header is the decoded framing of one page: everything Codec needs
// before it can interpret the entry bytes that follow.
type Header struct {
	Kind      Kind
	Level     uint16
	Count     uint16
	Next      ID
	PredCount uint16
}

// writeHeader serializes h in a fixed field order (kind, level, count,
// next, predCount); readHeader decodes in the same order.
func writeHeader(buf *bytes.Buffer, h Header) error {
	if err := binary.Write(buf, binary.BigEndian, uint8(h.Kind)); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.BigEndian, h.Level); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.BigEndian, h.Count); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.BigEndian, uint64(h.Next)); err != nil {
		return err
	}
	return binary.Write(buf, binary.BigEndian, h.PredCount)
}

func readHeader(r *bytes.Reader) (Header, error) {
	var h Header
	var kind uint8
	var next uint64
	if err := binary.Read(r, binary.BigEndian, &kind); err != nil {
		return h, err
	}
	h.Kind = Kind(kind)
	if err := binary.Read(r, binary.BigEndian, &h.Level); err != nil {
		return h, err
	}
	if err := binary.Read(r, binary.BigEndian, &h.Count); err != nil {
		return h, err
	}
	if err := binary.Read(r, binary.BigEndian, &next); err != nil {
		return h, err
	}
	h.Next = ID(next)
	if err := binary.Read(r, binary.BigEndian, &h.PredCount); err != nil {
		return h, err
	}
	return h, nil
}
