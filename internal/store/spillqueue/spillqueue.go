// Package spillqueue is a disk-backed overflow area for
// MV-Tree-Plus buffer contents that push-all cannot drain in a single
// pass. It is the bulk-loader's staging area: when a node's in-memory
// buffer reaches the loader's spill threshold, the whole buffer is
// spilled here as one batch, replayed when that node's buffers are
// next flushed.
package spillqueue

import (
	"bufio"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"mvtree/internal/kv"
	"mvtree/internal/mverr"
	"mvtree/internal/page"
)

// Queue batches spilled elements into uniquely-named files under dir
// and replays them in FIFO order.
type Queue struct {
	dir        string
	keyCodec   kv.KeyCodec
	valueCodec kv.ValueCodec

	mu      sync.Mutex
	pending []string
}

// Open prepares dir (creating it if necessary) as the backing
// directory for spill batches.
func Open(dir string, kc kv.KeyCodec, vc kv.ValueCodec) (*Queue, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, mverr.IO("mkdir", 0, err)
	}
	return &Queue{dir: dir, keyCodec: kc, valueCodec: vc}, nil
}

// Spill writes elements to a new batch file, named with a random UUID
// so concurrent loaders never collide, and enqueues it for DrainNext.
func (q *Queue) Spill(elements []page.BufferedElement) (string, error) {
	path := filepath.Join(q.dir, uuid.NewString()+".batch")
	f, err := os.Create(path)
	if err != nil {
		return "", mverr.IO("create", 0, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.BigEndian, uint32(len(elements))); err != nil {
		return "", err
	}
	for _, e := range elements {
		if err := q.writeElement(w, e); err != nil {
			return "", err
		}
	}
	if err := w.Flush(); err != nil {
		return "", mverr.IO("flush", 0, err)
	}

	q.mu.Lock()
	q.pending = append(q.pending, path)
	q.mu.Unlock()
	return path, nil
}

// Depth reports the number of batches still awaiting DrainNext.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// DrainNext pops, decodes, and deletes the oldest pending batch.
// Returns (nil, nil) once the queue is empty.
func (q *Queue) DrainNext() ([]page.BufferedElement, error) {
	q.mu.Lock()
	if len(q.pending) == 0 {
		q.mu.Unlock()
		return nil, nil
	}
	path := q.pending[0]
	q.pending = q.pending[1:]
	q.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, mverr.IO("open", 0, err)
	}
	defer f.Close()
	defer os.Remove(path)

	r := bufio.NewReader(f)
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, mverr.Corrupted("spill batch %s: reading count: %v", path, err)
	}
	out := make([]page.BufferedElement, 0, n)
	for i := uint32(0); i < n; i++ {
		e, err := q.readElement(r)
		if err != nil {
			return nil, mverr.Corrupted("spill batch %s: decoding element %d: %v", path, i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (q *Queue) writeElement(w *bufio.Writer, e page.BufferedElement) error {
	if err := q.keyCodec.Encode(w, e.Key); err != nil {
		return err
	}
	if err := q.valueCodec.Encode(w, e.Value); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, e.Version); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, uint8(e.Op))
}

func (q *Queue) readElement(r *bufio.Reader) (page.BufferedElement, error) {
	k, err := q.keyCodec.Decode(r)
	if err != nil {
		return page.BufferedElement{}, err
	}
	v, err := q.valueCodec.Decode(r)
	if err != nil {
		return page.BufferedElement{}, err
	}
	var version uint64
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return page.BufferedElement{}, err
	}
	var op uint8
	if err := binary.Read(r, binary.BigEndian, &op); err != nil {
		return page.BufferedElement{}, err
	}
	return page.BufferedElement{Key: k, Value: v, Version: version, Op: page.BufferedOp(op)}, nil
}
