// Package pathhash derives opaque path segments from conversation and
// message identifiers. Segments are one-way: knowing a path on disk never
// reveals which conversation it belongs to, while both processes derive
// identical paths independently.
package pathhash

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Salts namespace the derived segments so records of different kinds can
// never collide even for the same identifier.
const (
	ConvoSalt   = "ConvoIdSalt-"
	DumpSalt    = "DumpSalt-"
	MessageSalt = "UnreadMessageSalt-"
	DedupeSalt  = "DedupeRecordSalt-"

	// MessageRequestMarker is hashed over a bucket's own segment to name
	// the bucket's message-request stub.
	MessageRequestMarker = "messageRequest"
)

// Func hashes a preimage into a digest. A nil return signals failure.
type Func func([]byte) []byte

// Blake3 is the default hash.
func Blake3(b []byte) []byte {
	h := blake3.New()
	_, _ = h.Write(b)
	return h.Sum(nil)
}

// Deriver turns salted identifiers into fixed-length hex segments.
// The zero value is not usable; construct with New.
type Deriver struct {
	fn Func
}

// New returns a Deriver using fn, or Blake3 when fn is nil.
func New(fn Func) Deriver {
	if fn == nil {
		fn = Blake3
	}
	return Deriver{fn: fn}
}

// Segment derives the path segment for identifier under salt. It returns
// "" and false when the hash fails; callers treat that as "no path", never
// as an error to propagate.
func (d Deriver) Segment(salt, identifier string) (string, bool) {
	if d.fn == nil {
		return "", false
	}
	sum := d.fn(append([]byte(salt), identifier...))
	if len(sum) == 0 {
		return "", false
	}
	return hex.EncodeToString(sum), true
}
