// Package sip018 implements structured-data signing: a one-time domain hash
// binding application name, version, and network, and a two-level message
// digest signed with a recoverable secp256k1 signature.
package sip018

import (
	"crypto/sha256"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/blockassets/marketplace/core"
	"github.com/blockassets/marketplace/pkg/clarity"
)

// structuredDataPrefix tags the signing scheme version ("SIP018"). It keeps a
// structured-data signature from being valid as any other kind of message.
var structuredDataPrefix = []byte{0x53, 0x49, 0x50, 0x30, 0x31, 0x38}

// Network identifiers separating deployments.
const (
	ChainIDMainnet uint32 = 1
	ChainIDTestnet uint32 = 2147483648
)

// signatureSize is the length of a compact recoverable signature:
// 1 recovery header byte followed by 32-byte R and 32-byte S.
const signatureSize = 65

// compactHeaderOffset is the smallest valid recovery header byte;
// compactHeaderCompressed is added when the recovered key is compressed.
const (
	compactHeaderOffset     byte = 27
	compactHeaderCompressed byte = 4
)

// Domain identifies one deployment. Signatures bound to one domain never
// verify under another.
type Domain struct {
	Name    string
	Version string
	ChainID uint32
}

// Engine computes digests for one domain. The domain hash is computed once at
// construction and reused for every digest; recomputing it per call with
// varying inputs would break replay protection.
type Engine struct {
	domain     Domain
	domainHash [32]byte
}

// New builds an engine for the given domain.
func New(domain Domain) (*Engine, error) {
	if domain.Name == "" || domain.Version == "" {
		return nil, fmt.Errorf("sip018: domain name and version are required")
	}
	raw, err := clarity.Serialize(clarity.Tuple{
		"name":     clarity.StringASCII(domain.Name),
		"version":  clarity.StringASCII(domain.Version),
		"chain-id": clarity.UInt(uint64(domain.ChainID)),
	})
	if err != nil {
		return nil, fmt.Errorf("sip018: serialize domain: %w", err)
	}
	return &Engine{domain: domain, domainHash: sha256.Sum256(raw)}, nil
}

// Domain returns the engine's domain.
func (e *Engine) Domain() Domain { return e.domain }

// DomainHash returns the memoized domain hash.
func (e *Engine) DomainHash() [32]byte { return e.domainHash }

// Digest computes sha256(prefix || domainHash || sha256(serialize(msg))).
// The inner hash commits to the exact structured value including field names,
// so a signature over one message type cannot be replayed as another.
func (e *Engine) Digest(msg clarity.Value) ([32]byte, error) {
	raw, err := clarity.Serialize(msg)
	if err != nil {
		return [32]byte{}, fmt.Errorf("sip018: serialize message: %w", err)
	}
	msgHash := sha256.Sum256(raw)

	h := sha256.New()
	h.Write(structuredDataPrefix)
	h.Write(e.domainHash[:])
	h.Write(msgHash[:])

	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest, nil
}

// Verify recovers the signer of sig over digest and compares the derived
// principal to claimed. A malformed or non-recovering signature is an error;
// a clean recovery of a different principal is (false, nil) so callers can
// branch to an authorization-denied outcome.
func (e *Engine) Verify(digest [32]byte, sig []byte, claimed clarity.Principal) (bool, error) {
	recovered, err := RecoverPrincipal(digest, sig, claimed.Version)
	if err != nil {
		return false, err
	}
	return recovered == claimed, nil
}

// Sign produces a compact recoverable signature over digest in the
// engine-native VRS layout: leading recovery header, then R and S.
func Sign(digest [32]byte, priv *secp256k1.PrivateKey) []byte {
	return ecdsa.SignCompact(priv, digest[:], true)
}

// RecoverPrincipal recovers the signing public key from a VRS signature and
// derives the signer's principal under the given address version.
func RecoverPrincipal(digest [32]byte, sig []byte, addressVersion byte) (clarity.Principal, error) {
	if len(sig) != signatureSize {
		return clarity.Principal{}, fmt.Errorf("sip018: signature must be %d bytes, got %d: %w",
			signatureSize, len(sig), core.ErrInvalidSignature)
	}
	pub, _, err := ecdsa.RecoverCompact(sig, digest[:])
	if err != nil {
		return clarity.Principal{}, fmt.Errorf("sip018: recover public key: %v: %w", err, core.ErrInvalidSignature)
	}
	principal, err := clarity.PrincipalFromPublicKey(pub.SerializeCompressed(), addressVersion)
	if err != nil {
		return clarity.Principal{}, fmt.Errorf("sip018: derive principal: %w", err)
	}
	return principal, nil
}

// FromRSV converts a trailing-recovery-byte signature (the layout most
// off-ledger signers emit) to the engine-native VRS layout. The recovery byte
// may be a raw identifier (0..3) or already carry the 27 offset.
func FromRSV(sig []byte) ([]byte, error) {
	if len(sig) != signatureSize {
		return nil, fmt.Errorf("sip018: signature must be %d bytes, got %d: %w",
			signatureSize, len(sig), core.ErrInvalidSignature)
	}
	recID := sig[signatureSize-1]
	if recID >= compactHeaderOffset {
		recID -= compactHeaderOffset
	}
	recID &^= compactHeaderCompressed
	if recID > 3 {
		return nil, fmt.Errorf("sip018: recovery identifier %d out of range: %w",
			sig[signatureSize-1], core.ErrInvalidSignature)
	}

	out := make([]byte, signatureSize)
	out[0] = compactHeaderOffset + compactHeaderCompressed + recID
	copy(out[1:], sig[:signatureSize-1])
	return out, nil
}

// ToRSV converts an engine-native VRS signature to the trailing-recovery-byte
// layout with a raw recovery identifier.
func ToRSV(sig []byte) ([]byte, error) {
	if len(sig) != signatureSize {
		return nil, fmt.Errorf("sip018: signature must be %d bytes, got %d: %w",
			signatureSize, len(sig), core.ErrInvalidSignature)
	}
	header := sig[0]
	if header < compactHeaderOffset || header > compactHeaderOffset+compactHeaderCompressed+3 {
		return nil, fmt.Errorf("sip018: recovery header %d out of range: %w", header, core.ErrInvalidSignature)
	}

	out := make([]byte, signatureSize)
	copy(out, sig[1:])
	out[signatureSize-1] = (header - compactHeaderOffset) &^ compactHeaderCompressed
	return out, nil
}
