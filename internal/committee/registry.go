// Package committee implements the deterministically ranked set of
// service-node operators eligible to vote on a given outpoint at a given
// height, and the ECDSA signer backing vote authentication.
package committee

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/rawblock/txlock-engine/internal/txlock"
)

// Member is one registered committee node: its identity (collateral
// outpoint) and its public key.
type Member struct {
	ID        txlock.CommitteeId
	PubKey    *btcec.PublicKey
	ProtoVer  uint32
}

// Registry is a stdlib-only implementation of txlock.Committee. Ranking is
// computed the way the reference ghostnode manager ranks members: by
// sorting on a per-height deterministic score derived from HMAC(blockHash,
// memberID), not on raw proof-of-work or stake weight (out of scope here —
// see DESIGN.md, no pack example implements this scheme directly).
type Registry struct {
	mu      sync.RWMutex
	members map[txlock.CommitteeId]Member
	askLog  map[string]int

	self   txlock.CommitteeId
	hasSelf bool

	blockHashAt func(height int64) ([32]byte, error)
}

// NewRegistry builds an empty registry. blockHashAt resolves the block hash
// used as the ranking seed for a given height; normally backed by the chain
// adapter.
func NewRegistry(blockHashAt func(height int64) ([32]byte, error)) *Registry {
	return &Registry{
		members:     make(map[txlock.CommitteeId]Member),
		askLog:      make(map[string]int),
		blockHashAt: blockHashAt,
	}
}

// Register adds or updates a committee member.
func (r *Registry) Register(m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[m.ID] = m
}

// SetSelf marks this node as the committee member identified by id. Nodes
// that are not themselves committee operators never call this.
func (r *Registry) SetSelf(id txlock.CommitteeId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.self = id
	r.hasSelf = true
}

func (r *Registry) Self() (txlock.CommitteeId, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.self, r.hasSelf
}

func (r *Registry) Has(id txlock.CommitteeId) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[id]
	return ok
}

func (r *Registry) Info(id txlock.CommitteeId) bool {
	return r.Has(id)
}

// AskFor records a registration request from peer for diagnostics. Real
// peer messaging is out of scope for the engine (spec.md §1); the host's
// p2p layer is expected to act on this.
func (r *Registry) AskFor(peer string, id txlock.CommitteeId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.askLog[peer+"|"+id.String()]++
}

// score computes the deterministic rank seed for a member at a given
// height: HMAC-SHA256(blockHash, memberID), truncated to a uint64, the way
// the ghostnode manager's GetGhostnodeRank hashes (collateral, blockHash)
// pairs to obtain a comparable score.
func score(blockHash [32]byte, id txlock.CommitteeId) uint64 {
	mac := hmac.New(sha256.New, blockHash[:])
	mac.Write([]byte(id.String()))
	sum := mac.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

// Rank returns id's 0-indexed rank among all known members at atHeight, or
// -1 if id is unranked (unknown, or below minProtocolVersion).
func (r *Registry) Rank(id txlock.CommitteeId, atHeight int64, minProtocolVersion uint32) (int, error) {
	r.mu.RLock()
	member, known := r.members[id]
	all := make([]Member, 0, len(r.members))
	for _, m := range r.members {
		all = append(all, m)
	}
	r.mu.RUnlock()

	if !known || member.ProtoVer < minProtocolVersion {
		return -1, nil
	}

	blockHash, err := r.blockHashAt(atHeight)
	if err != nil {
		return -1, fmt.Errorf("committee: block hash at height %d unavailable: %w", atHeight, err)
	}

	type scored struct {
		id    txlock.CommitteeId
		score uint64
	}
	ranked := make([]scored, 0, len(all))
	for _, m := range all {
		if m.ProtoVer < minProtocolVersion {
			continue
		}
		ranked = append(ranked, scored{id: m.ID, score: score(blockHash, m.ID)})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score < ranked[j].score })

	for i, s := range ranked {
		if s.id == id {
			return i, nil
		}
	}
	return -1, nil
}
