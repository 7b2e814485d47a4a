package adaptive

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the length of keys returned by ParseKey and DeriveSubkey.
	KeySize = 32

	// MinPassphraseLength is the minimum accepted passphrase length.
	MinPassphraseLength = 8

	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

// ErrPassphraseTooShort is returned by ParseKey for short passphrases.
var ErrPassphraseTooShort = errors.New("adaptive: passphrase must be at least 8 characters")

// ParseKey turns configured key material into a master key. A 64-character
// hex string is decoded directly. Anything else is treated as a passphrase
// and stretched with Argon2id using a salt derived from domain, so the same
// passphrase and domain always yield the same key.
func ParseKey(material, domain string) ([]byte, error) {
	if len(material) == hex.EncodedLen(KeySize) {
		if key, err := hex.DecodeString(material); err == nil {
			return key, nil
		}
	}
	if len(material) < MinPassphraseLength {
		return nil, ErrPassphraseTooShort
	}
	salt := sha256.Sum256([]byte("sfsb/passphrase-salt/" + domain))
	return argon2.IDKey([]byte(material), salt[:16], argon2Time, argon2Memory, argon2Threads, KeySize), nil
}

// DeriveSubkey derives a purpose-bound key from masterKey with HKDF-SHA256.
func DeriveSubkey(masterKey []byte, info string, length int) ([]byte, error) {
	if len(masterKey) < 16 {
		return nil, errors.New("adaptive: master key must be at least 16 bytes")
	}
	r := hkdf.New(sha256.New, masterKey, nil, []byte(info))
	key := make([]byte, length)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}
