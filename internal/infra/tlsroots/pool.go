package tlsroots

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrNoCertsFound is returned when a bundle holds no certificates.
var ErrNoCertsFound = errors.New("tlsroots: no certificates found")

var bundleExts = []string{".pem", ".crt", ".cer"}

// LoadPool builds a pool from PEM bundles. A directory path adds every
// bundle file in it; unparsable files in a directory are skipped, while
// an explicitly named file must parse.
func LoadPool(paths ...string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	added := 0
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("tlsroots: %w", err)
		}
		if !info.IsDir() {
			n, err := addFile(pool, path)
			if err != nil {
				return nil, err
			}
			added += n
			continue
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("tlsroots: read dir %s: %w", path, err)
		}
		for _, ent := range entries {
			ext := strings.ToLower(filepath.Ext(ent.Name()))
			if ent.IsDir() || !slices.Contains(bundleExts, ext) {
				continue
			}
			if n, err := addFile(pool, filepath.Join(path, ent.Name())); err == nil {
				added += n
			}
		}
	}
	if added == 0 {
		return nil, ErrNoCertsFound
	}
	return pool, nil
}

func addFile(pool *x509.CertPool, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("tlsroots: read %s: %w", path, err)
	}
	n, err := addPEM(pool, data)
	if err != nil {
		return 0, fmt.Errorf("tlsroots: %s: %w", path, err)
	}
	return n, nil
}

func addPEM(pool *x509.CertPool, data []byte) (int, error) {
	n := 0
	for len(data) > 0 {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return 0, fmt.Errorf("parse certificate: %w", err)
		}
		pool.AddCert(cert)
		n++
	}
	if n == 0 {
		return 0, ErrNoCertsFound
	}
	return n, nil
}
