// Package kv defines the abstract key/value contract the tree core
// is built against. Concrete key and value types, and their wire
// encodings, are external collaborators (see package codec for
// worked examples) — the core only ever calls Compare and Size.
package kv

// Key is a totally ordered key. Implementations must be comparable
// with Compare in a way consistent with a strict weak ordering:
// Compare(a,b) < 0 iff Compare(b,a) > 0, and Compare(a,a) == 0.
type Key interface {
	Compare(other Key) int
}

// Value is an opaque payload with a known maximum serialized size.
// The tree never inspects a Value beyond Size and whatever the
// caller's Extractor reports as its key.
type Value interface {
	Size() int
}

// Extractor maps a value to the key it is stored under.
type Extractor func(Value) Key

// Equal reports whether a and b compare equal.
func Equal(a, b Key) bool { return a.Compare(b) == 0 }

// Less reports whether a sorts strictly before b.
func Less(a, b Key) bool { return a.Compare(b) < 0 }
