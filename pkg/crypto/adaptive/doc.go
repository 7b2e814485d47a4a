// Package adaptive provides authenticated encryption for data at rest.
//
// Two AEAD algorithms are supported: AES-256-GCM (default where the CPU
// has AES instructions) and ChaCha20-Poly1305. Ciphertexts carry their
// random nonce as a prefix.
//
// Keys come from ParseKey, which accepts either a 64-character hex string
// (used as-is) or a passphrase (stretched with Argon2id), and are then
// narrowed per purpose with DeriveSubkey.
package adaptive
