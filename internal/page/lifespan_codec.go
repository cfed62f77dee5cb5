package page

import (
	"bytes"
	"encoding/binary"

	"mvtree/internal/descriptor"
	"mvtree/internal/version"
)

// lifespanWireSize is Begin (8) + End (8) + Closed (1).
const lifespanWireSize = 17

func writeLifespan(buf *bytes.Buffer, l descriptor.Lifespan) error {
	if err := binary.Write(buf, binary.BigEndian, uint64(l.Begin)); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.BigEndian, uint64(l.End)); err != nil {
		return err
	}
	var closed uint8
	if l.Closed {
		closed = 1
	}
	return binary.Write(buf, binary.BigEndian, closed)
}

func readLifespan(r *bytes.Reader) (descriptor.Lifespan, error) {
	var begin, end uint64
	var closed uint8
	if err := binary.Read(r, binary.BigEndian, &begin); err != nil {
		return descriptor.Lifespan{}, err
	}
	if err := binary.Read(r, binary.BigEndian, &end); err != nil {
		return descriptor.Lifespan{}, err
	}
	if err := binary.Read(r, binary.BigEndian, &closed); err != nil {
		return descriptor.Lifespan{}, err
	}
	return descriptor.Lifespan{Begin: version.V(begin), End: version.V(end), Closed: closed == 1}, nil
}
