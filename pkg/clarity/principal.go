package clarity

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // hash160 is fixed by the address format
)

// Address version bytes distinguishing deployment networks.
const (
	VersionMainnet byte = 0x16
	VersionTestnet byte = 0x1a
)

// Principal is an opaque, comparable caller identity: a network version byte
// plus the hash160 of the holder's compressed public key.
type Principal struct {
	Version byte
	Hash    [20]byte
}

// PrincipalFromPublicKey derives a principal from a serialized compressed
// secp256k1 public key (33 bytes) under the given address version.
func PrincipalFromPublicKey(compressed []byte, version byte) (Principal, error) {
	if len(compressed) != 33 {
		return Principal{}, fmt.Errorf("clarity: compressed public key must be 33 bytes, got %d", len(compressed))
	}
	sha := sha256.Sum256(compressed)
	rmd := ripemd160.New()
	rmd.Write(sha[:])

	p := Principal{Version: version}
	copy(p.Hash[:], rmd.Sum(nil))
	return p, nil
}

// ParsePrincipal decodes the hex form produced by String.
func ParsePrincipal(s string) (Principal, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Principal{}, fmt.Errorf("clarity: invalid principal %q: %w", s, err)
	}
	if len(raw) != 21 {
		return Principal{}, fmt.Errorf("clarity: principal must be 21 bytes, got %d", len(raw))
	}
	p := Principal{Version: raw[0]}
	copy(p.Hash[:], raw[1:])
	return p, nil
}

// IsZero reports whether p is the zero principal.
func (p Principal) IsZero() bool {
	return p == Principal{}
}

func (p Principal) String() string {
	return hex.EncodeToString(append([]byte{p.Version}, p.Hash[:]...))
}

func (p Principal) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Principal) UnmarshalText(text []byte) error {
	parsed, err := ParsePrincipal(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p Principal) writeTo(buf *bytes.Buffer) error {
	buf.WriteByte(tagPrincipalStandard)
	buf.WriteByte(p.Version)
	buf.Write(p.Hash[:])
	return nil
}
