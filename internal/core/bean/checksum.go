package bean

import (
	"encoding/binary"
	"encoding/hex"
	"hash"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 checksum of a snapshot.
type Digest [32]byte

// String returns the hex form of d.
func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// checksumKey separates snapshot checksums from any other BLAKE3 use.
var checksumKey = [32]byte{
	's', 'f', 's', 'b', '.', 'w', 'r', 'a', 'p', 'p', 'e', 'r', '.',
	'c', 'h', 'e', 'c', 'k', 's', 'u', 'm', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Checksum hashes the id and the ordered fields of w. Type and lifecycle
// times are excluded, as is the file encoding: the digest only changes
// when the id or a field value changes.
func Checksum(w *Wrapper) Digest {
	h, err := blake3.NewKeyed(checksumKey[:])
	if err != nil {
		panic("bean: blake3 keyed hasher: " + err.Error())
	}
	writeChunk(h, []byte(w.ID))
	for _, f := range w.Fields {
		writeChunk(h, []byte(f.Name))
		writeChunk(h, f.Value)
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

func writeChunk(h hash.Hash, b []byte) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(b)))
	h.Write(n[:])
	h.Write(b)
}
