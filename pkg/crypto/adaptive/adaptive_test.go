package adaptive

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

var key32 = func() []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = byte(i)
	}
	return k
}()

func TestNew(t *testing.T) {
	c, err := New(key32)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if typ := c.Type(); typ != CipherAESGCM && typ != CipherChaCha20 {
		t.Errorf("New() returned unknown cipher type: %s", typ)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, typ := range []CipherType{CipherAESGCM, CipherChaCha20} {
		t.Run(string(typ), func(t *testing.T) {
			c, err := NewWithType(key32, typ)
			if err != nil {
				t.Fatalf("NewWithType(%s) error = %v", typ, err)
			}
			if c.Type() != typ {
				t.Errorf("Type() = %s, want %s", c.Type(), typ)
			}

			plaintext := []byte("cart contents")
			ad := []byte("header")

			ct, err := c.Encrypt(plaintext, ad)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if len(ct) != len(plaintext)+c.Overhead() {
				t.Errorf("len(ciphertext) = %d, want %d", len(ct), len(plaintext)+c.Overhead())
			}

			pt, err := c.Decrypt(ct, ad)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(pt, plaintext) {
				t.Errorf("Decrypt() = %q, want %q", pt, plaintext)
			}

			if _, err := c.Decrypt(ct, []byte("other header")); err == nil {
				t.Error("Decrypt() with different additional data should fail")
			}

			ct[len(ct)-1] ^= 0xff
			if _, err := c.Decrypt(ct, ad); err == nil {
				t.Error("Decrypt() of tampered ciphertext should fail")
			}
		})
	}
}

func TestEncrypt_UniqueNonce(t *testing.T) {
	c, _ := NewWithType(key32, CipherAESGCM)
	a, _ := c.Encrypt([]byte("x"), nil)
	b, _ := c.Encrypt([]byte("x"), nil)
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same plaintext should differ")
	}
}

func TestNewWithType_InvalidKey(t *testing.T) {
	if _, err := NewWithType(make([]byte, 10), CipherAESGCM); err == nil {
		t.Error("AES-GCM with 10-byte key should fail")
	}
	if _, err := NewWithType(make([]byte, 16), CipherChaCha20); err == nil {
		t.Error("ChaCha20 with 16-byte key should fail")
	}
	if _, err := NewWithType(key32, "rot13"); err == nil {
		t.Error("unknown cipher type should fail")
	}
}

func TestDecrypt_TooShort(t *testing.T) {
	c, _ := NewWithType(key32, CipherChaCha20)
	if _, err := c.Decrypt([]byte{1, 2, 3}, nil); !errors.Is(err, ErrCiphertextTooShort) {
		t.Errorf("Decrypt(short) error = %v, want ErrCiphertextTooShort", err)
	}
}

func TestParseKey(t *testing.T) {
	hexKey := strings.Repeat("ab", KeySize)
	key, err := ParseKey(hexKey, "sessions")
	if err != nil {
		t.Fatalf("ParseKey(hex) error = %v", err)
	}
	if key[0] != 0xab || len(key) != KeySize {
		t.Errorf("ParseKey(hex) = %x, want 32 bytes of 0xab", key)
	}

	p1, err := ParseKey("correct horse battery", "sessions")
	if err != nil {
		t.Fatalf("ParseKey(passphrase) error = %v", err)
	}
	p2, _ := ParseKey("correct horse battery", "sessions")
	if !bytes.Equal(p1, p2) {
		t.Error("ParseKey should be deterministic for the same passphrase and domain")
	}
	p3, _ := ParseKey("correct horse battery", "other")
	if bytes.Equal(p1, p3) {
		t.Error("ParseKey should differ across domains")
	}

	if _, err := ParseKey("short", "sessions"); !errors.Is(err, ErrPassphraseTooShort) {
		t.Errorf("ParseKey(short) error = %v, want ErrPassphraseTooShort", err)
	}
}

func TestDeriveSubkey(t *testing.T) {
	a, err := DeriveSubkey(key32, "session-file", KeySize)
	if err != nil {
		t.Fatalf("DeriveSubkey() error = %v", err)
	}
	b, _ := DeriveSubkey(key32, "other", KeySize)
	if bytes.Equal(a, b) {
		t.Error("subkeys for different info should differ")
	}
	if _, err := DeriveSubkey(make([]byte, 8), "x", KeySize); err == nil {
		t.Error("DeriveSubkey with short master key should fail")
	}
}
