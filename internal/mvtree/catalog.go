package mvtree

import (
	"encoding/binary"
	"fmt"
	"io"

	"mvtree/internal/kv"
	"mvtree/internal/page"
	"mvtree/internal/version"
)

// versionKey and pageValue are the worked-example-style collaborator
// types the historical-root catalog is built on: the catalog is
// itself an ordinary internal/bptree.Tree, keyed by the version a new
// root took effect at, valued by that root's page id.
type versionKey version.V

func (v versionKey) Compare(other kv.Key) int {
	o, ok := other.(versionKey)
	if !ok {
		panic(fmt.Sprintf("mvtree.versionKey.Compare: incompatible key type %T", other))
	}
	return version.V(v).Compare(version.V(o))
}

type versionKeyCodec struct{}

func (versionKeyCodec) MaxSize() int { return 8 }
func (versionKeyCodec) Encode(w io.Writer, k kv.Key) error {
	return binary.Write(w, binary.BigEndian, uint64(k.(versionKey)))
}
func (versionKeyCodec) Decode(r io.Reader) (kv.Key, error) {
	var v uint64
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return nil, err
	}
	return versionKey(v), nil
}

type pageValue page.ID

func (pageValue) Size() int { return 8 }

type pageValueCodec struct{}

func (pageValueCodec) MaxSize() int { return 8 }
func (pageValueCodec) Encode(w io.Writer, v kv.Value) error {
	return binary.Write(w, binary.BigEndian, uint64(v.(pageValue)))
}
func (pageValueCodec) Decode(r io.Reader) (kv.Value, error) {
	var v uint64
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return nil, err
	}
	return pageValue(v), nil
}
