// Package keyring implements the key material handling consumed by the auth
// provider: PEM key loading, sub-key blobs, identifier derivation, detached
// signatures, and JWT minting.
package keyring

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base32"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/concrnt/concrnt-go/core"
)

// KeyPair holds an ed25519 key pair loaded from PEM.
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// SubKey is a delegated signing key bound to a root CCID and home domain.
type SubKey struct {
	Domain string
	CCID   string
	CKID   string
	Key    KeyPair
}

// identifier derivation: 24 bytes of SHAKE-256 over the public key, base32
// lower-case without padding, truncated to fit the 42-char identifier.
const derivedIDLength = 38

var identifierEncoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// LoadKey parses a PKCS#8 PEM-encoded ed25519 private key.
func LoadKey(pemText string) (*KeyPair, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", core.ErrInvalidKey)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidKey, err)
	}
	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an ed25519 key", core.ErrInvalidKey)
	}
	return &KeyPair{
		Public:  priv.Public().(ed25519.PublicKey),
		Private: priv,
	}, nil
}

// LoadSubKey parses a sub-key blob of the form
// "concurrent-subkey <ckid> <privatekey-hex> <ccid>@<fqdn>".
func LoadSubKey(blob string) (*SubKey, error) {
	fields := strings.Fields(strings.TrimSpace(blob))
	if len(fields) != 4 || fields[0] != "concurrent-subkey" {
		return nil, fmt.Errorf("%w: malformed sub-key blob", core.ErrInvalidKey)
	}
	ckid := fields[1]
	if !core.IsCKID(ckid) {
		return nil, fmt.Errorf("%w: %q is not a CKID", core.ErrInvalidKey, ckid)
	}
	seed, err := hex.DecodeString(fields[2])
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: bad private key hex", core.ErrInvalidKey)
	}
	ccid, domain, ok := strings.Cut(fields[3], "@")
	if !ok || !core.IsCCID(ccid) || domain == "" {
		return nil, fmt.Errorf("%w: bad owner suffix", core.ErrInvalidKey)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &SubKey{
		Domain: domain,
		CCID:   ccid,
		CKID:   ckid,
		Key: KeyPair{
			Public:  priv.Public().(ed25519.PublicKey),
			Private: priv,
		},
	}, nil
}

// ComputeCCID derives the account root identifier for a public key.
func ComputeCCID(pub ed25519.PublicKey) string {
	return "con1" + deriveID(pub)
}

// ComputeCSID derives the domain identity identifier for a public key.
func ComputeCSID(pub ed25519.PublicKey) string {
	return "ccs1" + deriveID(pub)
}

// ComputeCKID derives the sub-key identifier for a public key.
func ComputeCKID(pub ed25519.PublicKey) string {
	return "cck1" + deriveID(pub)
}

func deriveID(pub ed25519.PublicKey) string {
	digest := make([]byte, 24)
	sha3.ShakeSum256(digest, pub)
	encoded := identifierEncoding.EncodeToString(digest)
	return encoded[:derivedIDLength]
}

// Sign produces a hex-encoded detached ed25519 signature over data.
func Sign(priv ed25519.PrivateKey, data []byte) string {
	return hex.EncodeToString(ed25519.Sign(priv, data))
}

// Verify checks a hex-encoded detached signature against data.
func Verify(pub ed25519.PublicKey, data []byte, signature string) bool {
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, data, sig)
}
