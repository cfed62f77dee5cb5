package mvplus

import (
	"encoding/binary"
	"fmt"
	"io"

	"mvtree/internal/kv"
	"mvtree/internal/page"
	"mvtree/internal/version"
)

// versionKey and pageValue key the historical-root catalog by the
// version a retired root took effect at — the same shape
// mvtree/catalog.go uses, duplicated here rather than imported since
// it is an unexported worked example local to each tree kind.
type versionKey version.V

func (v versionKey) Compare(other kv.Key) int {
	o, ok := other.(versionKey)
	if !ok {
		panic(fmt.Sprintf("mvplus.versionKey.Compare: incompatible key type %T", other))
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

// retireRoot records a root that was live when a bulk-load batch
// started into the historical catalog, keyed by the version it was
// superseded at — called once, at the end of a batch that actually
// replaced the root, per §4.5 bullet 2 ("retire the live root region
// into roots; its lifespan becomes [minVersion, liveRoot.insertVersion]").
func (l *Loader) retireRoot(root page.ID, at version.V) error {
	if root == 0 {
		return nil
	}
	return l.historicalRoots.Insert(versionKey(at), pageValue(root))
}
