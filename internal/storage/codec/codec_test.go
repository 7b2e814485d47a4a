package codec

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/sfsb-go/internal/core/bean"
	"github.com/yndnr/sfsb-go/internal/core/domain"
	"github.com/yndnr/sfsb-go/pkg/crypto/adaptive"
)

func testWrapper(t *testing.T) *bean.Wrapper {
	t.Helper()
	owner, _ := bean.Marshal("ann")
	items, _ := bean.Marshal(map[string]int{"apple": 3, "pear": 1})
	notes, _ := bean.Marshal(strings.Repeat("compressible text ", 64))
	created := time.Date(2026, 5, 1, 10, 0, 0, 123, time.UTC)
	return &bean.Wrapper{
		ID:        "01J0ABCDEF",
		Type:      "cart",
		CreatedAt: created,
		ExpiresAt: created.Add(24 * time.Minute),
		Fields: []bean.Field{
			{Name: "owner", Value: owner},
			{Name: "items", Value: items},
			{Name: "notes", Value: notes},
		},
	}
}

func testCipher(t *testing.T, typ adaptive.CipherType, fill byte) adaptive.Cipher {
	t.Helper()
	key := make([]byte, adaptive.KeySize)
	for i := range key {
		key[i] = fill
	}
	c, err := adaptive.NewWithType(key, typ)
	if err != nil {
		t.Fatalf("NewWithType: %v", err)
	}
	return c
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		opts func(t *testing.T) Options
	}{
		{"plain", func(*testing.T) Options { return Options{} }},
		{"lz4", func(*testing.T) Options { return Options{Compression: CompressionLZ4} }},
		{"zstd", func(*testing.T) Options { return Options{Compression: CompressionZstd} }},
		{"aes-gcm", func(t *testing.T) Options {
			return Options{Cipher: testCipher(t, adaptive.CipherAESGCM, 1)}
		}},
		{"zstd+chacha20", func(t *testing.T) Options {
			return Options{Compression: CompressionZstd, Cipher: testCipher(t, adaptive.CipherChaCha20, 2)}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.opts(t))
			w := testWrapper(t)

			frame, err := c.Encode(w)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := c.Decode(frame)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !got.Equal(w) {
				t.Errorf("Decode(Encode(w)) = %+v, want %+v", got, w)
			}
		})
	}
}

func TestRoundTrip_ZeroTimesAndNoFields(t *testing.T) {
	c := New(Options{})
	w := &bean.Wrapper{ID: "x", Type: "empty"}
	frame, err := c.Encode(w)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := c.Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !got.CreatedAt.IsZero() || !got.ExpiresAt.IsZero() || len(got.Fields) != 0 {
		t.Errorf("Decode = %+v, want zero times and no fields", got)
	}
}

func TestEncode_IncompressibleFallsBack(t *testing.T) {
	c := New(Options{Compression: CompressionLZ4})
	w := &bean.Wrapper{ID: "x", Type: "t"}
	frame, err := c.Encode(w)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	h, err := c.DecodeHeader(frame)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if h.Compression != CompressionNone {
		t.Errorf("Compression = %s, want none for a tiny body", h.Compression)
	}
}

func TestDecode_Corrupt(t *testing.T) {
	c := New(Options{Compression: CompressionZstd})
	frame, err := c.Encode(testWrapper(t))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	flip := func(i int) []byte {
		b := append([]byte(nil), frame...)
		b[i] ^= 0x01
		return b
	}

	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"garbage", []byte("definitely not a session frame, but long enough to parse a header")},
		{"truncated", frame[:len(frame)-1]},
		{"extra byte", append(append([]byte(nil), frame...), 0)},
		{"bad magic", flip(0)},
		{"bad version", flip(8)},
		{"flipped payload", flip(headerSize + 2)},
		{"flipped trailer", flip(len(frame) - 1)},
		{"flipped created_at", flip(12)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := c.Decode(tt.input)
			if !errors.Is(err, domain.ErrCorruptEncoding) {
				t.Errorf("Decode error = %v, want ErrCorruptEncoding", err)
			}
			if w != nil {
				t.Errorf("Decode returned partial result %+v", w)
			}
			if !domain.IsCorrupt(err) {
				t.Error("IsCorrupt should hold for corrupt frames")
			}
		})
	}
}

func TestDecode_CipherErrors(t *testing.T) {
	enc := New(Options{Cipher: testCipher(t, adaptive.CipherAESGCM, 7)})
	frame, err := enc.Encode(testWrapper(t))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if _, err := New(Options{}).Decode(frame); !errors.Is(err, domain.ErrCipherRequired) {
		t.Errorf("Decode without key = %v, want ErrCipherRequired", err)
	}

	wrongKey := New(Options{Cipher: testCipher(t, adaptive.CipherAESGCM, 8)})
	_, err = wrongKey.Decode(frame)
	if !errors.Is(err, domain.ErrCipherMismatch) {
		t.Errorf("Decode with wrong key = %v, want ErrCipherMismatch", err)
	}
	if domain.IsCorrupt(err) {
		t.Error("a key mismatch must not be reported as corruption")
	}

	h, err := New(Options{}).DecodeHeader(frame)
	if err != nil {
		t.Fatalf("DecodeHeader without key: %v", err)
	}
	if !h.Encrypted {
		t.Error("header should report encryption")
	}
}

func TestDecodeHeader(t *testing.T) {
	c := New(Options{Compression: CompressionZstd})
	w := testWrapper(t)
	frame, _ := c.Encode(w)

	h, err := c.DecodeHeader(frame)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if !h.CreatedAt.Equal(w.CreatedAt) || !h.ExpiresAt.Equal(w.ExpiresAt) {
		t.Errorf("header times = %v/%v, want %v/%v", h.CreatedAt, h.ExpiresAt, w.CreatedAt, w.ExpiresAt)
	}
	if h.Compression != CompressionZstd || h.Version != frameVersion {
		t.Errorf("header = %+v", h)
	}
}

func TestParseCompression(t *testing.T) {
	for _, name := range []string{"none", "lz4", "zstd"} {
		c, err := ParseCompression(name)
		if err != nil {
			t.Fatalf("ParseCompression(%q): %v", name, err)
		}
		if c.String() != name {
			t.Errorf("String() = %q, want %q", c.String(), name)
		}
	}
	if c, err := ParseCompression(""); err != nil || c != CompressionNone {
		t.Errorf("ParseCompression(\"\") = %v, %v", c, err)
	}
	if _, err := ParseCompression("brotli"); err == nil {
		t.Error("ParseCompression(brotli) should fail")
	}
}
