// Package codec converts bean wrappers to and from session frames.
//
// Frame layout (big endian):
//
//	magic       [8]byte  "SFSBWRAP"
//	version     uint8
//	flags       uint8    low nibble: Compression, bit 7: encrypted
//	createdAt   int64    unix nanoseconds, 0 when unset
//	expiresAt   int64    unix nanoseconds, 0 when unset
//	rawSize     uint32   size of the CBOR body before compression
//	payloadSize uint32
//	payload     []byte   encrypt?(compress(cbor(body)))
//	checksum    [32]byte SHA-256 of everything above
//
// The header is the AEAD additional data, so lifecycle times cannot be
// altered without the key even though they are readable without it.
package codec

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"time"

	"github.com/yndnr/sfsb-go/internal/core/bean"
	"github.com/yndnr/sfsb-go/internal/core/domain"
	"github.com/yndnr/sfsb-go/pkg/crypto/adaptive"
)

const (
	magic        = "SFSBWRAP"
	frameVersion = 1

	headerSize  = 8 + 1 + 1 + 8 + 8 + 4 + 4
	trailerSize = sha256.Size

	flagEncrypted   = 0x80
	compressionMask = 0x0f

	// maxRawSize bounds the decoded body so a damaged size field cannot
	// trigger a huge allocation.
	maxRawSize = 64 << 20
)

// Options configures a Codec.
type Options struct {
	Compression Compression
	// Cipher encrypts new frames and is required to read encrypted ones.
	Cipher adaptive.Cipher
}

// Codec encodes wrappers into frames. It is safe for concurrent use.
type Codec struct {
	compression Compression
	cipher      adaptive.Cipher
}

// New returns a Codec.
func New(opts Options) *Codec {
	return &Codec{compression: opts.Compression, cipher: opts.Cipher}
}

// Header is the metadata readable without decoding the payload.
type Header struct {
	Version     uint8
	Compression Compression
	Encrypted   bool
	CreatedAt   time.Time
	ExpiresAt   time.Time
	RawSize     int
	PayloadSize int
}

type body struct {
	ID     string       `cbor:"1,keyasint"`
	Type   string       `cbor:"2,keyasint"`
	Fields []bean.Field `cbor:"3,keyasint"`
}

// Encode serializes w into a frame.
func (c *Codec) Encode(w *bean.Wrapper) ([]byte, error) {
	raw, err := bean.Marshal(body{ID: w.ID, Type: w.Type, Fields: w.Fields})
	if err != nil {
		return nil, err
	}

	comp := c.compression
	payload, err := compress(raw, comp)
	if errors.Is(err, errIncompressible) {
		comp, payload = CompressionNone, raw
	} else if err != nil {
		return nil, err
	}

	flags := byte(comp) & compressionMask
	payloadSize := len(payload)
	if c.cipher != nil {
		flags |= flagEncrypted
		payloadSize += c.cipher.Overhead()
	}

	frame := make([]byte, headerSize, headerSize+payloadSize+trailerSize)
	copy(frame, magic)
	frame[8] = frameVersion
	frame[9] = flags
	binary.BigEndian.PutUint64(frame[10:], uint64(unixNano(w.CreatedAt)))
	binary.BigEndian.PutUint64(frame[18:], uint64(unixNano(w.ExpiresAt)))
	binary.BigEndian.PutUint32(frame[26:], uint32(len(raw)))
	binary.BigEndian.PutUint32(frame[30:], uint32(payloadSize))

	if c.cipher != nil {
		payload, err = c.cipher.Encrypt(payload, frame[:headerSize])
		if err != nil {
			return nil, err
		}
	}
	frame = append(frame, payload...)
	sum := sha256.Sum256(frame)
	return append(frame, sum[:]...), nil
}

// Decode parses a frame. Malformed input yields domain.ErrCorruptEncoding;
// an encrypted frame yields domain.ErrCipherRequired without a cipher and
// domain.ErrCipherMismatch when the cipher cannot open it.
func (c *Codec) Decode(frame []byte) (*bean.Wrapper, error) {
	h, payload, err := parse(frame)
	if err != nil {
		return nil, err
	}

	if h.Encrypted {
		if c.cipher == nil {
			return nil, domain.ErrCipherRequired
		}
		payload, err = c.cipher.Decrypt(payload, frame[:headerSize])
		if err != nil {
			return nil, domain.ErrCipherMismatch.WithCause(err)
		}
	}

	raw, err := decompress(payload, h.Compression, h.RawSize)
	if err != nil {
		return nil, corrupt("payload", err)
	}

	var b body
	if err := bean.Unmarshal(raw, &b); err != nil {
		return nil, corrupt("body", err)
	}
	if b.ID == "" || b.Type == "" {
		return nil, domain.ErrCorruptEncoding.WithDetails("body missing id or type")
	}
	return &bean.Wrapper{
		ID:        b.ID,
		Type:      b.Type,
		CreatedAt: h.CreatedAt,
		ExpiresAt: h.ExpiresAt,
		Fields:    b.Fields,
	}, nil
}

// DecodeHeader validates the frame and returns its header without
// decrypting or decoding the payload.
func (c *Codec) DecodeHeader(frame []byte) (Header, error) {
	h, _, err := parse(frame)
	return h, err
}

func parse(frame []byte) (Header, []byte, error) {
	if len(frame) < headerSize+trailerSize {
		return Header{}, nil, domain.ErrCorruptEncoding.WithDetailsf("frame too short: %d bytes", len(frame))
	}
	if !bytes.Equal(frame[:8], []byte(magic)) {
		return Header{}, nil, domain.ErrCorruptEncoding.WithDetails("bad magic")
	}
	if frame[8] != frameVersion {
		return Header{}, nil, domain.ErrCorruptEncoding.WithDetailsf("unsupported version %d", frame[8])
	}

	h := Header{
		Version:     frame[8],
		Compression: Compression(frame[9] & compressionMask),
		Encrypted:   frame[9]&flagEncrypted != 0,
		CreatedAt:   fromUnixNano(int64(binary.BigEndian.Uint64(frame[10:]))),
		ExpiresAt:   fromUnixNano(int64(binary.BigEndian.Uint64(frame[18:]))),
		RawSize:     int(binary.BigEndian.Uint32(frame[26:])),
		PayloadSize: int(binary.BigEndian.Uint32(frame[30:])),
	}
	if h.RawSize > maxRawSize {
		return Header{}, nil, domain.ErrCorruptEncoding.WithDetailsf("body size %d exceeds limit", h.RawSize)
	}
	if len(frame) != headerSize+h.PayloadSize+trailerSize {
		return Header{}, nil, domain.ErrCorruptEncoding.WithDetailsf("frame size %d does not match payload size %d", len(frame), h.PayloadSize)
	}

	end := headerSize + h.PayloadSize
	sum := sha256.Sum256(frame[:end])
	if !bytes.Equal(sum[:], frame[end:]) {
		return Header{}, nil, domain.ErrCorruptEncoding.WithDetails("checksum mismatch")
	}
	return h, frame[headerSize:end], nil
}

func corrupt(part string, err error) error {
	return domain.ErrCorruptEncoding.WithDetails(part).WithCause(err)
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
