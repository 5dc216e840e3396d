package committee

import (
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/rawblock/txlock-engine/internal/txlock"
)

// ECDSASigner signs and verifies the canonical vote message
// (stringify(txHash) ∥ stringify(outpoint)) with RFC6979 deterministic-nonce
// ECDSA over secp256k1 — the signature scheme named abstractly by
// spec.md §4.2/§6. Keys are held per CommitteeId so a single process can act
// on behalf of more than one locally-controlled member (useful in tests).
type ECDSASigner struct {
	mu   sync.RWMutex
	keys map[txlock.CommitteeId]*secp256k1.PrivateKey
	pubs map[txlock.CommitteeId]*btcec.PublicKey
}

func NewECDSASigner() *ECDSASigner {
	return &ECDSASigner{
		keys: make(map[txlock.CommitteeId]*secp256k1.PrivateKey),
		pubs: make(map[txlock.CommitteeId]*btcec.PublicKey),
	}
}

// AddKey registers the signing key for a locally-controlled member.
func (s *ECDSASigner) AddKey(id txlock.CommitteeId, priv *secp256k1.PrivateKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[id] = priv
	pub := (*btcec.PublicKey)(priv.PubKey())
	s.pubs[id] = pub
}

// AddPublicKey registers a remote member's public key for verification only.
func (s *ECDSASigner) AddPublicKey(id txlock.CommitteeId, pub *btcec.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pubs[id] = pub
}

func voteDigest(txHash txlock.TxHash, outpoint txlock.Outpoint) [32]byte {
	msg := txHash.String() + outpoint.String()
	return sha256.Sum256([]byte(msg))
}

func (s *ECDSASigner) Sign(id txlock.CommitteeId, txHash txlock.TxHash, outpoint txlock.Outpoint) ([]byte, error) {
	s.mu.RLock()
	priv, ok := s.keys[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("committee: no private key registered for %s", id)
	}
	digest := voteDigest(txHash, outpoint)
	sig := ecdsa.Sign((*btcec.PrivateKey)(priv), digest[:])
	return sig.Serialize(), nil
}

func (s *ECDSASigner) Verify(id txlock.CommitteeId, txHash txlock.TxHash, outpoint txlock.Outpoint, sig []byte) (bool, error) {
	s.mu.RLock()
	pub, ok := s.pubs[id]
	s.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("committee: no public key registered for %s", id)
	}
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false, fmt.Errorf("committee: malformed signature: %w", err)
	}
	digest := voteDigest(txHash, outpoint)
	return parsed.Verify(digest[:], pub), nil
}
